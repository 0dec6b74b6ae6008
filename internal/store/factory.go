package store

import (
	"groupwarden.app/warden/core/db"
)

type Stores struct {
	q db.DBTX
}

func NewStores(q db.DBTX) *Stores {
	return &Stores{q: q}
}

func (s *Stores) Groups() GroupStore {
	return newGroupStore(s.q)
}

func (s *Stores) GroupConfigs() GroupConfigStore {
	return newGroupConfigStore(s.q)
}

func (s *Stores) Users() UserStore {
	return newUserStore(s.q)
}

func (s *Stores) Messages() MessageStore {
	return newMessageStore(s.q)
}

func (s *Stores) Treatments() TreatmentStore {
	return newTreatmentStore(s.q)
}
