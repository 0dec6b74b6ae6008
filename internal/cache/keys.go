package cache

import "fmt"

// Key scheme for the seven logical caches plus the reputation, cooldown and
// rate-limit scalars. Group keys use the platform chat id.

func keyUserGroup(userID, groupID int64) string {
	return fmt.Sprintf("user:%d:group:%d", userID, groupID)
}

func keyUserGroupEnriched(userID, groupID int64) string {
	return fmt.Sprintf("user:%d:group:%d:enriched_recent", userID, groupID)
}

func keyUserGlobal(userID int64) string {
	return fmt.Sprintf("user:%d:global", userID)
}

func keyGroupState(groupID int64) string {
	return fmt.Sprintf("group:%d:state", groupID)
}

func keyGroupConfig(groupID int64) string {
	return fmt.Sprintf("group:%d:config", groupID)
}

func keyGroupMessages(groupID int64) string {
	return fmt.Sprintf("group:%d:recent_msgs", groupID)
}

func keyTaskStatus(messageID int64) string {
	return fmt.Sprintf("message:%d:status", messageID)
}

func keyReputation(userID, groupID int64) string {
	return fmt.Sprintf("user:%d:group:%d:reputation", userID, groupID)
}

func keyCooldown(groupID int64) string {
	return fmt.Sprintf("group:%d:rehydration_cooldown", groupID)
}

func keyGroupRate(groupID int64) string {
	return fmt.Sprintf("rate:group:%d", groupID)
}

func patternUserGroup(groupID int64) string {
	return fmt.Sprintf("user:*:group:%d", groupID)
}

func patternUserGroupEnriched(groupID int64) string {
	return fmt.Sprintf("user:*:group:%d:enriched_recent", groupID)
}
