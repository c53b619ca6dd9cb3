package core

import "time"

// Class names as they appear on the wire. The underscore-prefixed names are
// part of the public API surface and must not be normalized.
const (
	EntityUser            = "_User"
	EntityInstallation    = "_Installation"
	EntityBottle          = "Bottle"
	EntitySip             = "Sip"
	EntityDay             = "Day"
	EntityLocation        = "Location"
	EntityGlow            = "Glow"
	EntityUserHealthStats = "UserHealthStats"
)

// Permission values attachable through grants.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
)

// User is the account record. PasswordHash is write-only internal state:
// it never appears in any serialization and is only set through signup.
type User struct {
	ObjectID                    string
	Birthday                    *time.Time
	WakeUp                      *time.Time
	GoToSleep                   *time.Time
	SipGlow                     bool
	Gender                      string
	Weight                      float64
	TimeZone                    string
	FluidInMetric               bool
	ElevationInMetric           bool
	HeightInMetric              bool
	LightNotificationCount      int64
	DegreesInMetric             bool
	AppNotificationCount        int64
	Name                        string
	Breastfeeding               bool
	WeightInMetric              bool
	PushNotificationCount       int64
	Spam                        bool
	Email                       string
	ActivityLevel               int64
	Username                    string
	Height                      float64
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
	AgreedToTOS                 bool
	SuppressedNotificationTypes any
	BottleVendors               any
	FitbitUserID                string
	Goal                        *float64
	LightType                   int64
	PushNotificationAlways      bool
	PasswordHash                string
}

func (u *User) EntityName() string    { return EntityUser }
func (u *User) Identity() string      { return u.ObjectID }
func (u *User) SetIdentity(id string) { u.ObjectID = id }

func (u *User) Stamp(now time.Time) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
}

type Bottle struct {
	ObjectID                  string
	LastSynced                time.Time
	BatteryLevel              int64
	Capacity                  int64
	FirmwareBootloaderVersion int64
	FirmwareMinorVersion      int64
	Name                      string
	SerialNumber              string
	UserID                    string
	ShouldUpdate              bool
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
	Description               any
	Location                  any
}

func (b *Bottle) EntityName() string    { return EntityBottle }
func (b *Bottle) Identity() string      { return b.ObjectID }
func (b *Bottle) SetIdentity(id string) { b.ObjectID = id }

func (b *Bottle) Stamp(now time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

type Sip struct {
	ObjectID           string
	Time               time.Time
	Amount             int64
	BottleSerialNumber string
	DayID              string
	Max                int64
	Min                int64
	Start              int64
	Stop               int64
	UserID             string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (s *Sip) EntityName() string    { return EntitySip }
func (s *Sip) Identity() string      { return s.ObjectID }
func (s *Sip) SetIdentity(id string) { s.ObjectID = id }

func (s *Sip) Stamp(now time.Time) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}

type Day struct {
	ObjectID          string
	UserID            string
	Date              time.Time
	TotalAmount       int64
	TotalBottleAmount int64
	LocationID        *string
	IsLocationUsed    bool
	RecommendedGoal   float64
	Goal              *float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Altitude          *float64
	Humidity          *float64
	Rank              *int64
	Steps             *int64
}

func (d *Day) EntityName() string    { return EntityDay }
func (d *Day) Identity() string      { return d.ObjectID }
func (d *Day) SetIdentity(id string) { d.ObjectID = id }

func (d *Day) Stamp(now time.Time) {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
}

type Location struct {
	ObjectID  string
	Altitude  float64
	Point     any
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (l *Location) EntityName() string    { return EntityLocation }
func (l *Location) Identity() string      { return l.ObjectID }
func (l *Location) SetIdentity(id string) { l.ObjectID = id }

func (l *Location) Stamp(now time.Time) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
}

// Glow is the only entity keyed by a UUID instead of a URL-safe token; its
// identity field is named "id" on the wire.
type Glow struct {
	ID        string
	Name      string
	Content   any
	UserID    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (g *Glow) EntityName() string    { return EntityGlow }
func (g *Glow) Identity() string      { return g.ID }
func (g *Glow) SetIdentity(id string) { g.ID = id }

func (g *Glow) Stamp(now time.Time) {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
}

type Installation struct {
	ObjectID         string
	UserID           *string
	DeviceType       string
	AppVersion       string
	AppName          string
	TimeZone         string
	InstallationID   string
	AppIdentifier    string
	LocaleIdentifier string
	DeviceName       string
	PushType         string
	DeviceToken      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (i *Installation) EntityName() string    { return EntityInstallation }
func (i *Installation) Identity() string      { return i.ObjectID }
func (i *Installation) SetIdentity(id string) { i.ObjectID = id }

func (i *Installation) Stamp(now time.Time) {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
}

type UserHealthStats struct {
	ObjectID     string
	UserID       string
	RecentTotal  float64
	RecentGoal   float64
	BottlesSaved int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Average      float64
	GoalMetCount int64
	StatDate     time.Time
	Volume       float64
	Streak       int64
}

func (s *UserHealthStats) EntityName() string    { return EntityUserHealthStats }
func (s *UserHealthStats) Identity() string      { return s.ObjectID }
func (s *UserHealthStats) SetIdentity(id string) { s.ObjectID = id }

func (s *UserHealthStats) Stamp(now time.Time) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}

// Grant is a (user, permission) pair. A user owns at most one grant per
// permission; the pair is then attached to individual records.
type Grant struct {
	ID         string
	UserID     string
	Permission Permission
}
