package core

import (
	"errors"
	"time"
)

// errFieldType is returned by a FieldSpec mutator when the unserialized
// value does not have the type the field stores.
var errFieldType = errors.New("core: value type does not match field")

// DefaultRecommendedGoal is the fixed daily-intake recommendation. The
// pipeline treats the computation as a black-box hook; this is its default.
const DefaultRecommendedGoal float64 = 2000

type readability bool

const (
	readable readability = true
	hidden   readability = false
)

type mutability bool

const (
	mutable mutability = true
	frozen  mutability = false
)

// field builds a spec whose mutator assigns a plain value.
func field[R Record, T any](name string, kind FieldKind, r readability, m mutability, get func(R) any, set func(R, T)) FieldSpec {
	spec := FieldSpec{
		Name:     name,
		Kind:     kind,
		Readable: bool(r),
		Mutable:  bool(m),
		Get: func(rec Record) any {
			return get(rec.(R))
		},
	}
	if set != nil {
		spec.Set = func(rec Record, v any) error {
			typed, ok := v.(T)
			if !ok {
				return errFieldType
			}
			set(rec.(R), typed)
			return nil
		}
	}
	return spec
}

// fieldPtr builds a spec for a nullable field; a nil wire value clears it.
func fieldPtr[R Record, T any](name string, kind FieldKind, r readability, m mutability, get func(R) any, set func(R, *T)) FieldSpec {
	spec := FieldSpec{
		Name:     name,
		Kind:     kind,
		Readable: bool(r),
		Mutable:  bool(m),
		Get: func(rec Record) any {
			return get(rec.(R))
		},
	}
	if set != nil {
		spec.Set = func(rec Record, v any) error {
			if v == nil {
				set(rec.(R), nil)
				return nil
			}
			typed, ok := v.(T)
			if !ok {
				return errFieldType
			}
			set(rec.(R), &typed)
			return nil
		}
	}
	return spec
}

// fieldJSON builds a spec for an opaque JSON document.
func fieldJSON[R Record](name string, r readability, m mutability, get func(R) any, set func(R, any)) FieldSpec {
	spec := FieldSpec{
		Name:     name,
		Kind:     KindJSON,
		Readable: bool(r),
		Mutable:  bool(m),
		Get: func(rec Record) any {
			return get(rec.(R))
		},
	}
	if set != nil {
		spec.Set = func(rec Record, v any) error {
			set(rec.(R), v)
			return nil
		}
	}
	return spec
}

func reference[R Record](name, refClass string, r readability, m mutability, get func(R) any, set func(R, string)) FieldSpec {
	spec := field[R, string](name, KindReference, r, m, get, set)
	spec.RefClass = refClass
	return spec
}

func referencePtr[R Record](name, refClass string, r readability, m mutability, get func(R) any, set func(R, *string)) FieldSpec {
	spec := fieldPtr[R, string](name, KindReference, r, m, get, set)
	spec.RefClass = refClass
	return spec
}

func derefOrNil[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// BuildRegistry constructs the full entity catalog. Called once at startup;
// the result is shared and never mutated.
func BuildRegistry() (*Registry, error) {
	return newRegistry(
		userType(),
		bottleType(),
		sipType(),
		dayType(),
		locationType(),
		glowType(),
		installationType(),
		userHealthStatsType(),
	)
}

func userType() *EntityType {
	return newEntityType(EntityUser, "objectId", func() Record { return &User{} }, []FieldSpec{
		field[*User, string]("objectId", KindString, readable, frozen, func(u *User) any { return u.ObjectID }, nil),
		fieldPtr[*User, time.Time]("birthday", KindDate, readable, mutable, func(u *User) any { return derefOrNil(u.Birthday) }, func(u *User, v *time.Time) { u.Birthday = v }),
		fieldPtr[*User, time.Time]("wakeUp", KindDate, readable, mutable, func(u *User) any { return derefOrNil(u.WakeUp) }, func(u *User, v *time.Time) { u.WakeUp = v }),
		fieldPtr[*User, time.Time]("goToSleep", KindDate, readable, mutable, func(u *User) any { return derefOrNil(u.GoToSleep) }, func(u *User, v *time.Time) { u.GoToSleep = v }),
		field[*User, bool]("sipGlow", KindBool, readable, mutable, func(u *User) any { return u.SipGlow }, func(u *User, v bool) { u.SipGlow = v }),
		field[*User, string]("gender", KindString, readable, mutable, func(u *User) any { return u.Gender }, func(u *User, v string) { u.Gender = v }),
		field[*User, float64]("weight", KindFloat, readable, mutable, func(u *User) any { return u.Weight }, func(u *User, v float64) { u.Weight = v }),
		field[*User, string]("timeZone", KindString, readable, mutable, func(u *User) any { return u.TimeZone }, func(u *User, v string) { u.TimeZone = v }),
		field[*User, bool]("fluidInMetric", KindBool, readable, mutable, func(u *User) any { return u.FluidInMetric }, func(u *User, v bool) { u.FluidInMetric = v }),
		field[*User, bool]("elevationInMetric", KindBool, readable, mutable, func(u *User) any { return u.ElevationInMetric }, func(u *User, v bool) { u.ElevationInMetric = v }),
		field[*User, bool]("heightInMetric", KindBool, readable, mutable, func(u *User) any { return u.HeightInMetric }, func(u *User, v bool) { u.HeightInMetric = v }),
		field[*User, int64]("lightNotificationCount", KindInt, readable, mutable, func(u *User) any { return u.LightNotificationCount }, func(u *User, v int64) { u.LightNotificationCount = v }),
		field[*User, bool]("degreesInMetric", KindBool, readable, mutable, func(u *User) any { return u.DegreesInMetric }, func(u *User, v bool) { u.DegreesInMetric = v }),
		field[*User, int64]("appNotificationCount", KindInt, readable, mutable, func(u *User) any { return u.AppNotificationCount }, func(u *User, v int64) { u.AppNotificationCount = v }),
		field[*User, string]("name", KindString, readable, mutable, func(u *User) any { return u.Name }, func(u *User, v string) { u.Name = v }),
		field[*User, bool]("breastfeeding", KindBool, readable, mutable, func(u *User) any { return u.Breastfeeding }, func(u *User, v bool) { u.Breastfeeding = v }),
		field[*User, bool]("weightInMetric", KindBool, readable, mutable, func(u *User) any { return u.WeightInMetric }, func(u *User, v bool) { u.WeightInMetric = v }),
		field[*User, int64]("pushNotificationCount", KindInt, readable, mutable, func(u *User) any { return u.PushNotificationCount }, func(u *User, v int64) { u.PushNotificationCount = v }),
		field[*User, bool]("spam", KindBool, readable, mutable, func(u *User) any { return u.Spam }, func(u *User, v bool) { u.Spam = v }),
		field[*User, string]("email", KindString, readable, mutable, func(u *User) any { return u.Email }, func(u *User, v string) { u.Email = v }),
		field[*User, int64]("activityLevel", KindInt, readable, mutable, func(u *User) any { return u.ActivityLevel }, func(u *User, v int64) { u.ActivityLevel = v }),
		field[*User, string]("username", KindString, readable, mutable, func(u *User) any { return u.Username }, func(u *User, v string) { u.Username = v }),
		field[*User, float64]("height", KindFloat, readable, mutable, func(u *User) any { return u.Height }, func(u *User, v float64) { u.Height = v }),
		field[*User, time.Time]("createdAt", KindTimestamp, readable, frozen, func(u *User) any { return u.CreatedAt }, nil),
		field[*User, time.Time]("updatedAt", KindTimestamp, readable, frozen, func(u *User) any { return u.UpdatedAt }, nil),
		field[*User, bool]("agreedToTOS", KindBool, readable, mutable, func(u *User) any { return u.AgreedToTOS }, func(u *User, v bool) { u.AgreedToTOS = v }),
		fieldJSON[*User]("suppressedNotificationTypes", readable, mutable, func(u *User) any { return u.SuppressedNotificationTypes }, func(u *User, v any) { u.SuppressedNotificationTypes = v }),
		fieldJSON[*User]("bottleVendors", readable, mutable, func(u *User) any { return u.BottleVendors }, func(u *User, v any) { u.BottleVendors = v }),
		field[*User, string]("fitbitUserId", KindString, readable, mutable, func(u *User) any { return u.FitbitUserID }, func(u *User, v string) { u.FitbitUserID = v }),
		fieldPtr[*User, float64]("goal", KindFloat, readable, mutable, func(u *User) any { return derefOrNil(u.Goal) }, func(u *User, v *float64) { u.Goal = v }),
		field[*User, int64]("lightType", KindInt, readable, mutable, func(u *User) any { return u.LightType }, func(u *User, v int64) { u.LightType = v }),
		field[*User, bool]("pushNotificationAlways", KindBool, readable, mutable, func(u *User) any { return u.PushNotificationAlways }, func(u *User, v bool) { u.PushNotificationAlways = v }),
	})
}

func bottleType() *EntityType {
	// The source schema's mutable list fuses two adjacent entries around
	// "description"; the resolved set keeps description mutable and leaves
	// shouldUpdate server-controlled.
	return newEntityType(EntityBottle, "objectId", func() Record { return &Bottle{} }, []FieldSpec{
		field[*Bottle, string]("objectId", KindString, readable, frozen, func(b *Bottle) any { return b.ObjectID }, nil),
		field[*Bottle, time.Time]("lastSynced", KindDate, readable, mutable, func(b *Bottle) any { return b.LastSynced }, func(b *Bottle, v time.Time) { b.LastSynced = v }),
		field[*Bottle, int64]("batteryLevel", KindInt, readable, mutable, func(b *Bottle) any { return b.BatteryLevel }, func(b *Bottle, v int64) { b.BatteryLevel = v }),
		field[*Bottle, int64]("capacity", KindInt, readable, mutable, func(b *Bottle) any { return b.Capacity }, func(b *Bottle, v int64) { b.Capacity = v }),
		field[*Bottle, int64]("firmwareBootloaderVersion", KindInt, readable, mutable, func(b *Bottle) any { return b.FirmwareBootloaderVersion }, func(b *Bottle, v int64) { b.FirmwareBootloaderVersion = v }),
		field[*Bottle, int64]("firmwareMinorVersion", KindInt, readable, mutable, func(b *Bottle) any { return b.FirmwareMinorVersion }, func(b *Bottle, v int64) { b.FirmwareMinorVersion = v }),
		field[*Bottle, string]("name", KindString, readable, mutable, func(b *Bottle) any { return b.Name }, func(b *Bottle, v string) { b.Name = v }),
		field[*Bottle, string]("serialNumber", KindString, readable, mutable, func(b *Bottle) any { return b.SerialNumber }, func(b *Bottle, v string) { b.SerialNumber = v }),
		reference[*Bottle]("user", EntityUser, readable, mutable, func(b *Bottle) any {
			if b.UserID == "" {
				return nil
			}
			return b.UserID
		}, func(b *Bottle, v string) { b.UserID = v }),
		field[*Bottle, bool]("shouldUpdate", KindBool, readable, frozen, func(b *Bottle) any { return b.ShouldUpdate }, nil),
		field[*Bottle, time.Time]("createdAt", KindTimestamp, readable, frozen, func(b *Bottle) any { return b.CreatedAt }, nil),
		field[*Bottle, time.Time]("updatedAt", KindTimestamp, readable, frozen, func(b *Bottle) any { return b.UpdatedAt }, nil),
		fieldJSON[*Bottle]("description", readable, mutable, func(b *Bottle) any { return b.Description }, func(b *Bottle, v any) { b.Description = v }),
		fieldJSON[*Bottle]("location", readable, mutable, func(b *Bottle) any { return b.Location }, func(b *Bottle, v any) { b.Location = v }),
	})
}

func sipType() *EntityType {
	return newEntityType(EntitySip, "objectId", func() Record { return &Sip{} }, []FieldSpec{
		field[*Sip, string]("objectId", KindString, readable, frozen, func(s *Sip) any { return s.ObjectID }, nil),
		field[*Sip, time.Time]("time", KindDate, readable, mutable, func(s *Sip) any { return s.Time }, func(s *Sip, v time.Time) { s.Time = v }),
		field[*Sip, int64]("amount", KindInt, readable, mutable, func(s *Sip) any { return s.Amount }, func(s *Sip, v int64) { s.Amount = v }),
		field[*Sip, string]("bottleSerialNumber", KindString, readable, mutable, func(s *Sip) any { return s.BottleSerialNumber }, func(s *Sip, v string) { s.BottleSerialNumber = v }),
		reference[*Sip]("day", EntityDay, readable, mutable, func(s *Sip) any {
			if s.DayID == "" {
				return nil
			}
			return s.DayID
		}, func(s *Sip, v string) { s.DayID = v }),
		field[*Sip, int64]("max", KindInt, readable, mutable, func(s *Sip) any { return s.Max }, func(s *Sip, v int64) { s.Max = v }),
		field[*Sip, int64]("min", KindInt, readable, mutable, func(s *Sip) any { return s.Min }, func(s *Sip, v int64) { s.Min = v }),
		field[*Sip, int64]("start", KindInt, readable, mutable, func(s *Sip) any { return s.Start }, func(s *Sip, v int64) { s.Start = v }),
		field[*Sip, int64]("stop", KindInt, readable, mutable, func(s *Sip) any { return s.Stop }, func(s *Sip, v int64) { s.Stop = v }),
		reference[*Sip]("user", EntityUser, readable, mutable, func(s *Sip) any {
			if s.UserID == "" {
				return nil
			}
			return s.UserID
		}, func(s *Sip, v string) { s.UserID = v }),
		field[*Sip, time.Time]("createdAt", KindTimestamp, readable, frozen, func(s *Sip) any { return s.CreatedAt }, nil),
		field[*Sip, time.Time]("updatedAt", KindTimestamp, readable, frozen, func(s *Sip) any { return s.UpdatedAt }, nil),
	})
}

func dayType() *EntityType {
	et := newEntityType(EntityDay, "objectId", func() Record { return &Day{} }, []FieldSpec{
		field[*Day, string]("objectId", KindString, readable, frozen, func(d *Day) any { return d.ObjectID }, nil),
		reference[*Day]("user", EntityUser, readable, mutable, func(d *Day) any {
			if d.UserID == "" {
				return nil
			}
			return d.UserID
		}, func(d *Day, v string) { d.UserID = v }),
		field[*Day, time.Time]("date", KindDay, readable, mutable, func(d *Day) any { return d.Date }, func(d *Day, v time.Time) { d.Date = v }),
		field[*Day, int64]("totalAmount", KindInt, readable, mutable, func(d *Day) any { return d.TotalAmount }, func(d *Day, v int64) { d.TotalAmount = v }),
		field[*Day, int64]("totalBottleAmount", KindInt, readable, mutable, func(d *Day) any { return d.TotalBottleAmount }, func(d *Day, v int64) { d.TotalBottleAmount = v }),
		referencePtr[*Day]("location", EntityLocation, readable, mutable, func(d *Day) any { return derefOrNil(d.LocationID) }, func(d *Day, v *string) { d.LocationID = v }),
		field[*Day, bool]("isLocationUsed", KindBool, readable, mutable, func(d *Day) any { return d.IsLocationUsed }, func(d *Day, v bool) { d.IsLocationUsed = v }),
		field[*Day, float64]("recommendedGoal", KindFloat, readable, mutable, func(d *Day) any { return d.RecommendedGoal }, func(d *Day, v float64) { d.RecommendedGoal = v }),
		fieldPtr[*Day, float64]("goal", KindFloat, readable, mutable, func(d *Day) any { return derefOrNil(d.Goal) }, func(d *Day, v *float64) { d.Goal = v }),
		field[*Day, time.Time]("createdAt", KindTimestamp, readable, frozen, func(d *Day) any { return d.CreatedAt }, nil),
		field[*Day, time.Time]("updatedAt", KindTimestamp, readable, frozen, func(d *Day) any { return d.UpdatedAt }, nil),
		fieldPtr[*Day, float64]("altitude", KindFloat, readable, mutable, func(d *Day) any { return derefOrNil(d.Altitude) }, func(d *Day, v *float64) { d.Altitude = v }),
		fieldPtr[*Day, float64]("humidity", KindFloat, readable, mutable, func(d *Day) any { return derefOrNil(d.Humidity) }, func(d *Day, v *float64) { d.Humidity = v }),
		fieldPtr[*Day, int64]("rank", KindInt, readable, mutable, func(d *Day) any { return derefOrNil(d.Rank) }, func(d *Day, v *int64) { d.Rank = v }),
		fieldPtr[*Day, int64]("steps", KindInt, readable, mutable, func(d *Day) any { return derefOrNil(d.Steps) }, func(d *Day, v *int64) { d.Steps = v }),
	})
	// Clients read the location flag under two names.
	et.PostSerialize = func(r Record, out map[string]any) {
		out["locationUsed"] = r.(*Day).IsLocationUsed
	}
	return et
}

func locationType() *EntityType {
	return newEntityType(EntityLocation, "objectId", func() Record { return &Location{} }, []FieldSpec{
		field[*Location, string]("objectId", KindString, readable, frozen, func(l *Location) any { return l.ObjectID }, nil),
		field[*Location, float64]("altitude", KindFloat, readable, mutable, func(l *Location) any { return l.Altitude }, func(l *Location, v float64) { l.Altitude = v }),
		fieldJSON[*Location]("point", readable, mutable, func(l *Location) any { return l.Point }, func(l *Location, v any) { l.Point = v }),
		reference[*Location]("user", EntityUser, readable, mutable, func(l *Location) any {
			if l.UserID == "" {
				return nil
			}
			return l.UserID
		}, func(l *Location, v string) { l.UserID = v }),
		field[*Location, time.Time]("createdAt", KindTimestamp, hidden, frozen, func(l *Location) any { return l.CreatedAt }, nil),
		field[*Location, time.Time]("updatedAt", KindTimestamp, hidden, frozen, func(l *Location) any { return l.UpdatedAt }, nil),
	})
}

func glowType() *EntityType {
	et := newEntityType(EntityGlow, "id", func() Record { return &Glow{} }, []FieldSpec{
		field[*Glow, string]("id", KindString, readable, frozen, func(g *Glow) any { return g.ID }, nil),
		field[*Glow, string]("name", KindString, readable, mutable, func(g *Glow) any { return g.Name }, func(g *Glow, v string) { g.Name = v }),
		fieldJSON[*Glow]("content", readable, mutable, func(g *Glow) any { return g.Content }, func(g *Glow, v any) { g.Content = v }),
		referencePtr[*Glow]("user", EntityUser, hidden, mutable, func(g *Glow) any { return derefOrNil(g.UserID) }, func(g *Glow, v *string) { g.UserID = v }),
		field[*Glow, time.Time]("createdAt", KindTimestamp, hidden, frozen, func(g *Glow) any { return g.CreatedAt }, nil),
		field[*Glow, time.Time]("updatedAt", KindTimestamp, hidden, frozen, func(g *Glow) any { return g.UpdatedAt }, nil),
	})
	et.NewIdentity = NewGlowID
	return et
}

func installationType() *EntityType {
	// Installations are write-mostly: nothing is exposed through full
	// serialization, only the create/update echo fields.
	return newEntityType(EntityInstallation, "objectId", func() Record { return &Installation{} }, []FieldSpec{
		field[*Installation, string]("objectId", KindString, hidden, frozen, func(i *Installation) any { return i.ObjectID }, nil),
		referencePtr[*Installation]("user", EntityUser, hidden, mutable, func(i *Installation) any { return derefOrNil(i.UserID) }, func(i *Installation, v *string) { i.UserID = v }),
		field[*Installation, string]("deviceType", KindString, hidden, mutable, func(i *Installation) any { return i.DeviceType }, func(i *Installation, v string) { i.DeviceType = v }),
		field[*Installation, string]("appVersion", KindString, hidden, mutable, func(i *Installation) any { return i.AppVersion }, func(i *Installation, v string) { i.AppVersion = v }),
		field[*Installation, string]("appName", KindString, hidden, mutable, func(i *Installation) any { return i.AppName }, func(i *Installation, v string) { i.AppName = v }),
		field[*Installation, string]("timeZone", KindString, hidden, mutable, func(i *Installation) any { return i.TimeZone }, func(i *Installation, v string) { i.TimeZone = v }),
		field[*Installation, string]("installationId", KindString, hidden, mutable, func(i *Installation) any { return i.InstallationID }, func(i *Installation, v string) { i.InstallationID = v }),
		field[*Installation, string]("appIdentifier", KindString, hidden, mutable, func(i *Installation) any { return i.AppIdentifier }, func(i *Installation, v string) { i.AppIdentifier = v }),
		field[*Installation, string]("localeIdentifier", KindString, hidden, mutable, func(i *Installation) any { return i.LocaleIdentifier }, func(i *Installation, v string) { i.LocaleIdentifier = v }),
		field[*Installation, string]("deviceName", KindString, hidden, mutable, func(i *Installation) any { return i.DeviceName }, func(i *Installation, v string) { i.DeviceName = v }),
		field[*Installation, string]("pushType", KindString, hidden, mutable, func(i *Installation) any { return i.PushType }, func(i *Installation, v string) { i.PushType = v }),
		field[*Installation, string]("deviceToken", KindString, hidden, mutable, func(i *Installation) any { return i.DeviceToken }, func(i *Installation, v string) { i.DeviceToken = v }),
		field[*Installation, time.Time]("createdAt", KindTimestamp, hidden, frozen, func(i *Installation) any { return i.CreatedAt }, nil),
		field[*Installation, time.Time]("updatedAt", KindTimestamp, hidden, frozen, func(i *Installation) any { return i.UpdatedAt }, nil),
	})
}

func userHealthStatsType() *EntityType {
	et := newEntityType(EntityUserHealthStats, "objectId", func() Record { return &UserHealthStats{} }, []FieldSpec{
		field[*UserHealthStats, string]("objectId", KindString, readable, frozen, func(s *UserHealthStats) any { return s.ObjectID }, nil),
		reference[*UserHealthStats]("user", EntityUser, readable, frozen, func(s *UserHealthStats) any {
			if s.UserID == "" {
				return nil
			}
			return s.UserID
		}, nil),
		field[*UserHealthStats, float64]("recentTotal", KindFloat, readable, frozen, func(s *UserHealthStats) any { return s.RecentTotal }, nil),
		field[*UserHealthStats, float64]("recentGoal", KindFloat, readable, frozen, func(s *UserHealthStats) any { return s.RecentGoal }, nil),
		field[*UserHealthStats, int64]("bottlesSaved", KindInt, readable, frozen, func(s *UserHealthStats) any { return s.BottlesSaved }, nil),
		field[*UserHealthStats, time.Time]("createdAt", KindTimestamp, readable, frozen, func(s *UserHealthStats) any { return s.CreatedAt }, nil),
		field[*UserHealthStats, time.Time]("updatedAt", KindTimestamp, readable, frozen, func(s *UserHealthStats) any { return s.UpdatedAt }, nil),
		field[*UserHealthStats, float64]("average", KindFloat, readable, frozen, func(s *UserHealthStats) any { return s.Average }, nil),
		field[*UserHealthStats, int64]("goalMetCount", KindInt, readable, frozen, func(s *UserHealthStats) any { return s.GoalMetCount }, nil),
		field[*UserHealthStats, time.Time]("statDate", KindDate, readable, frozen, func(s *UserHealthStats) any { return s.StatDate }, nil),
		field[*UserHealthStats, float64]("volume", KindFloat, readable, frozen, func(s *UserHealthStats) any { return s.Volume }, nil),
		field[*UserHealthStats, int64]("streak", KindInt, readable, mutable, func(s *UserHealthStats) any { return s.Streak }, func(s *UserHealthStats, v int64) { s.Streak = v }),
	})
	et.PostSerialize = func(r Record, out map[string]any) {
		out["user_id"] = r.(*UserHealthStats).UserID
	}
	return et
}
