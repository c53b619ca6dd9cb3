package sqlstore

import "github.com/Ninjaclasher/hidrateapp-server/core"

var (
	_ core.Stores         = (*RepositoryFactory)(nil)
	_ core.RecordStore    = (*RecordStore)(nil)
	_ core.AccessStore    = (*AccessStore)(nil)
	_ core.UserStore      = (*UserStore)(nil)
	_ core.SessionStore   = (*SessionStore)(nil)
	_ core.SessionStore   = (*CachedSessionStore)(nil)
	_ core.AggregateStore = (*AggregateStore)(nil)
	_ core.DayStore       = (*DayStore)(nil)
)
