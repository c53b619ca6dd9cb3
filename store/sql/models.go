package sqlstore

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/Ninjaclasher/hidrateapp-server/core"
	"github.com/uptrace/bun"
)

// recordModel is the surface every persisted entity row shares: conversion
// back to its domain record.
type recordModel interface {
	toDomain() core.Record
}

// jsonColumn marshals an opaque document for storage. Nil stays NULL.
func jsonColumn(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

// jsonValue restores a stored document. Numbers come back as json.Number
// so large integers survive the round trip.
func jsonValue(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil
	}
	return out
}

type userRecord struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ObjectID                    string     `bun:"object_id,pk"`
	Birthday                    *time.Time `bun:"birthday,nullzero"`
	WakeUp                      *time.Time `bun:"wake_up,nullzero"`
	GoToSleep                   *time.Time `bun:"go_to_sleep,nullzero"`
	SipGlow                     bool       `bun:"sip_glow"`
	Gender                      string     `bun:"gender"`
	Weight                      float64    `bun:"weight"`
	TimeZone                    string     `bun:"time_zone"`
	FluidInMetric               bool       `bun:"fluid_in_metric"`
	ElevationInMetric           bool       `bun:"elevation_in_metric"`
	HeightInMetric              bool       `bun:"height_in_metric"`
	LightNotificationCount      int64      `bun:"light_notification_count"`
	DegreesInMetric             bool       `bun:"degrees_in_metric"`
	AppNotificationCount        int64      `bun:"app_notification_count"`
	Name                        string     `bun:"name"`
	Breastfeeding               bool       `bun:"breastfeeding"`
	WeightInMetric              bool       `bun:"weight_in_metric"`
	PushNotificationCount       int64      `bun:"push_notification_count"`
	Spam                        bool       `bun:"spam"`
	Email                       string     `bun:"email"`
	ActivityLevel               int64      `bun:"activity_level"`
	Username                    string     `bun:"username,unique"`
	Height                      float64    `bun:"height"`
	CreatedAt                   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt                   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	AgreedToTOS                 bool       `bun:"agreed_to_tos"`
	SuppressedNotificationTypes []byte     `bun:"suppressed_notification_types"`
	BottleVendors               []byte     `bun:"bottle_vendors"`
	FitbitUserID                string     `bun:"fitbit_user_id"`
	Goal                        *float64   `bun:"goal,nullzero"`
	LightType                   int64      `bun:"light_type"`
	PushNotificationAlways      bool       `bun:"push_notification_always"`
	Password                    string     `bun:"password"`
}

func newUserRecord(u *core.User) (*userRecord, error) {
	suppressed, err := jsonColumn(u.SuppressedNotificationTypes)
	if err != nil {
		return nil, err
	}
	vendors, err := jsonColumn(u.BottleVendors)
	if err != nil {
		return nil, err
	}
	return &userRecord{
		ObjectID:                    u.ObjectID,
		Birthday:                    u.Birthday,
		WakeUp:                      u.WakeUp,
		GoToSleep:                   u.GoToSleep,
		SipGlow:                     u.SipGlow,
		Gender:                      u.Gender,
		Weight:                      u.Weight,
		TimeZone:                    u.TimeZone,
		FluidInMetric:               u.FluidInMetric,
		ElevationInMetric:           u.ElevationInMetric,
		HeightInMetric:              u.HeightInMetric,
		LightNotificationCount:      u.LightNotificationCount,
		DegreesInMetric:             u.DegreesInMetric,
		AppNotificationCount:        u.AppNotificationCount,
		Name:                        u.Name,
		Breastfeeding:               u.Breastfeeding,
		WeightInMetric:              u.WeightInMetric,
		PushNotificationCount:       u.PushNotificationCount,
		Spam:                        u.Spam,
		Email:                       u.Email,
		ActivityLevel:               u.ActivityLevel,
		Username:                    u.Username,
		Height:                      u.Height,
		CreatedAt:                   u.CreatedAt,
		UpdatedAt:                   u.UpdatedAt,
		AgreedToTOS:                 u.AgreedToTOS,
		SuppressedNotificationTypes: suppressed,
		BottleVendors:               vendors,
		FitbitUserID:                u.FitbitUserID,
		Goal:                        u.Goal,
		LightType:                   u.LightType,
		PushNotificationAlways:      u.PushNotificationAlways,
		Password:                    u.PasswordHash,
	}, nil
}

func (r *userRecord) toDomain() core.Record {
	return &core.User{
		ObjectID:                    r.ObjectID,
		Birthday:                    r.Birthday,
		WakeUp:                      r.WakeUp,
		GoToSleep:                   r.GoToSleep,
		SipGlow:                     r.SipGlow,
		Gender:                      r.Gender,
		Weight:                      r.Weight,
		TimeZone:                    r.TimeZone,
		FluidInMetric:               r.FluidInMetric,
		ElevationInMetric:           r.ElevationInMetric,
		HeightInMetric:              r.HeightInMetric,
		LightNotificationCount:      r.LightNotificationCount,
		DegreesInMetric:             r.DegreesInMetric,
		AppNotificationCount:        r.AppNotificationCount,
		Name:                        r.Name,
		Breastfeeding:               r.Breastfeeding,
		WeightInMetric:              r.WeightInMetric,
		PushNotificationCount:       r.PushNotificationCount,
		Spam:                        r.Spam,
		Email:                       r.Email,
		ActivityLevel:               r.ActivityLevel,
		Username:                    r.Username,
		Height:                      r.Height,
		CreatedAt:                   r.CreatedAt,
		UpdatedAt:                   r.UpdatedAt,
		AgreedToTOS:                 r.AgreedToTOS,
		SuppressedNotificationTypes: jsonValue(r.SuppressedNotificationTypes),
		BottleVendors:               jsonValue(r.BottleVendors),
		FitbitUserID:                r.FitbitUserID,
		Goal:                        r.Goal,
		LightType:                   r.LightType,
		PushNotificationAlways:      r.PushNotificationAlways,
		PasswordHash:                r.Password,
	}
}

type bottleRecord struct {
	bun.BaseModel `bun:"table:bottles,alias:b"`

	ObjectID                  string    `bun:"object_id,pk"`
	LastSynced                time.Time `bun:"last_synced,nullzero"`
	BatteryLevel              int64     `bun:"battery_level"`
	Capacity                  int64     `bun:"capacity"`
	FirmwareBootloaderVersion int64     `bun:"firmware_bootloader_version"`
	FirmwareMinorVersion      int64     `bun:"firmware_minor_version"`
	Name                      string    `bun:"name"`
	SerialNumber              string    `bun:"serial_number"`
	UserID                    string    `bun:"user_id"`
	ShouldUpdate              bool      `bun:"should_update"`
	CreatedAt                 time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt                 time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	Description               []byte    `bun:"description"`
	Location                  []byte    `bun:"location"`
}

func newBottleRecord(b *core.Bottle) (*bottleRecord, error) {
	description, err := jsonColumn(b.Description)
	if err != nil {
		return nil, err
	}
	location, err := jsonColumn(b.Location)
	if err != nil {
		return nil, err
	}
	return &bottleRecord{
		ObjectID:                  b.ObjectID,
		LastSynced:                b.LastSynced,
		BatteryLevel:              b.BatteryLevel,
		Capacity:                  b.Capacity,
		FirmwareBootloaderVersion: b.FirmwareBootloaderVersion,
		FirmwareMinorVersion:      b.FirmwareMinorVersion,
		Name:                      b.Name,
		SerialNumber:              b.SerialNumber,
		UserID:                    b.UserID,
		ShouldUpdate:              b.ShouldUpdate,
		CreatedAt:                 b.CreatedAt,
		UpdatedAt:                 b.UpdatedAt,
		Description:               description,
		Location:                  location,
	}, nil
}

func (r *bottleRecord) toDomain() core.Record {
	return &core.Bottle{
		ObjectID:                  r.ObjectID,
		LastSynced:                r.LastSynced,
		BatteryLevel:              r.BatteryLevel,
		Capacity:                  r.Capacity,
		FirmwareBootloaderVersion: r.FirmwareBootloaderVersion,
		FirmwareMinorVersion:      r.FirmwareMinorVersion,
		Name:                      r.Name,
		SerialNumber:              r.SerialNumber,
		UserID:                    r.UserID,
		ShouldUpdate:              r.ShouldUpdate,
		CreatedAt:                 r.CreatedAt,
		UpdatedAt:                 r.UpdatedAt,
		Description:               jsonValue(r.Description),
		Location:                  jsonValue(r.Location),
	}
}

type sipRecord struct {
	bun.BaseModel `bun:"table:sips,alias:s"`

	ObjectID           string    `bun:"object_id,pk"`
	Time               time.Time `bun:"time,nullzero"`
	Amount             int64     `bun:"amount"`
	BottleSerialNumber string    `bun:"bottle_serial_number"`
	DayID              string    `bun:"day_id"`
	Max                int64     `bun:"max"`
	Min                int64     `bun:"min"`
	Start              int64     `bun:"start"`
	Stop               int64     `bun:"stop"`
	UserID             string    `bun:"user_id"`
	CreatedAt          time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newSipRecord(s *core.Sip) (*sipRecord, error) {
	return &sipRecord{
		ObjectID:           s.ObjectID,
		Time:               s.Time,
		Amount:             s.Amount,
		BottleSerialNumber: s.BottleSerialNumber,
		DayID:              s.DayID,
		Max:                s.Max,
		Min:                s.Min,
		Start:              s.Start,
		Stop:               s.Stop,
		UserID:             s.UserID,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}, nil
}

func (r *sipRecord) toDomain() core.Record {
	return &core.Sip{
		ObjectID:           r.ObjectID,
		Time:               r.Time,
		Amount:             r.Amount,
		BottleSerialNumber: r.BottleSerialNumber,
		DayID:              r.DayID,
		Max:                r.Max,
		Min:                r.Min,
		Start:              r.Start,
		Stop:               r.Stop,
		UserID:             r.UserID,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

type dayRecord struct {
	bun.BaseModel `bun:"table:days,alias:d"`

	ObjectID          string    `bun:"object_id,pk"`
	UserID            string    `bun:"user_id"`
	Date              time.Time `bun:"date,nullzero"`
	TotalAmount       int64     `bun:"total_amount"`
	TotalBottleAmount int64     `bun:"total_bottle_amount"`
	LocationID        *string   `bun:"location_id,nullzero"`
	IsLocationUsed    bool      `bun:"is_location_used"`
	RecommendedGoal   float64   `bun:"recommended_goal"`
	Goal              *float64  `bun:"goal,nullzero"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	Altitude          *float64  `bun:"altitude,nullzero"`
	Humidity          *float64  `bun:"humidity,nullzero"`
	Rank              *int64    `bun:"rank,nullzero"`
	Steps             *int64    `bun:"steps,nullzero"`
}

func newDayRecord(d *core.Day) (*dayRecord, error) {
	return &dayRecord{
		ObjectID:          d.ObjectID,
		UserID:            d.UserID,
		Date:              d.Date,
		TotalAmount:       d.TotalAmount,
		TotalBottleAmount: d.TotalBottleAmount,
		LocationID:        d.LocationID,
		IsLocationUsed:    d.IsLocationUsed,
		RecommendedGoal:   d.RecommendedGoal,
		Goal:              d.Goal,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
		Altitude:          d.Altitude,
		Humidity:          d.Humidity,
		Rank:              d.Rank,
		Steps:             d.Steps,
	}, nil
}

func (r *dayRecord) toDomain() core.Record {
	return &core.Day{
		ObjectID:          r.ObjectID,
		UserID:            r.UserID,
		Date:              r.Date,
		TotalAmount:       r.TotalAmount,
		TotalBottleAmount: r.TotalBottleAmount,
		LocationID:        r.LocationID,
		IsLocationUsed:    r.IsLocationUsed,
		RecommendedGoal:   r.RecommendedGoal,
		Goal:              r.Goal,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
		Altitude:          r.Altitude,
		Humidity:          r.Humidity,
		Rank:              r.Rank,
		Steps:             r.Steps,
	}
}

type locationRecord struct {
	bun.BaseModel `bun:"table:locations,alias:l"`

	ObjectID  string    `bun:"object_id,pk"`
	Altitude  float64   `bun:"altitude"`
	Point     []byte    `bun:"point"`
	UserID    string    `bun:"user_id"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newLocationRecord(l *core.Location) (*locationRecord, error) {
	point, err := jsonColumn(l.Point)
	if err != nil {
		return nil, err
	}
	return &locationRecord{
		ObjectID:  l.ObjectID,
		Altitude:  l.Altitude,
		Point:     point,
		UserID:    l.UserID,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}, nil
}

func (r *locationRecord) toDomain() core.Record {
	return &core.Location{
		ObjectID:  r.ObjectID,
		Altitude:  r.Altitude,
		Point:     jsonValue(r.Point),
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type glowRecord struct {
	bun.BaseModel `bun:"table:glows,alias:g"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name"`
	Content   []byte    `bun:"content"`
	UserID    *string   `bun:"user_id,nullzero"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newGlowRecord(g *core.Glow) (*glowRecord, error) {
	content, err := jsonColumn(g.Content)
	if err != nil {
		return nil, err
	}
	return &glowRecord{
		ID:        g.ID,
		Name:      g.Name,
		Content:   content,
		UserID:    g.UserID,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}, nil
}

func (r *glowRecord) toDomain() core.Record {
	return &core.Glow{
		ID:        r.ID,
		Name:      r.Name,
		Content:   jsonValue(r.Content),
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type installationRecord struct {
	bun.BaseModel `bun:"table:installations,alias:i"`

	ObjectID         string    `bun:"object_id,pk"`
	UserID           *string   `bun:"user_id,nullzero"`
	DeviceType       string    `bun:"device_type"`
	AppVersion       string    `bun:"app_version"`
	AppName          string    `bun:"app_name"`
	TimeZone         string    `bun:"time_zone"`
	InstallationID   string    `bun:"installation_id"`
	AppIdentifier    string    `bun:"app_identifier"`
	LocaleIdentifier string    `bun:"locale_identifier"`
	DeviceName       string    `bun:"device_name"`
	PushType         string    `bun:"push_type"`
	DeviceToken      string    `bun:"device_token"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newInstallationRecord(i *core.Installation) (*installationRecord, error) {
	return &installationRecord{
		ObjectID:         i.ObjectID,
		UserID:           i.UserID,
		DeviceType:       i.DeviceType,
		AppVersion:       i.AppVersion,
		AppName:          i.AppName,
		TimeZone:         i.TimeZone,
		InstallationID:   i.InstallationID,
		AppIdentifier:    i.AppIdentifier,
		LocaleIdentifier: i.LocaleIdentifier,
		DeviceName:       i.DeviceName,
		PushType:         i.PushType,
		DeviceToken:      i.DeviceToken,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
	}, nil
}

func (r *installationRecord) toDomain() core.Record {
	return &core.Installation{
		ObjectID:         r.ObjectID,
		UserID:           r.UserID,
		DeviceType:       r.DeviceType,
		AppVersion:       r.AppVersion,
		AppName:          r.AppName,
		TimeZone:         r.TimeZone,
		InstallationID:   r.InstallationID,
		AppIdentifier:    r.AppIdentifier,
		LocaleIdentifier: r.LocaleIdentifier,
		DeviceName:       r.DeviceName,
		PushType:         r.PushType,
		DeviceToken:      r.DeviceToken,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type userHealthStatsRecord struct {
	bun.BaseModel `bun:"table:user_health_stats,alias:uhs"`

	ObjectID     string    `bun:"object_id,pk"`
	UserID       string    `bun:"user_id"`
	RecentTotal  float64   `bun:"recent_total"`
	RecentGoal   float64   `bun:"recent_goal"`
	BottlesSaved int64     `bun:"bottles_saved"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
	Average      float64   `bun:"average"`
	GoalMetCount int64     `bun:"goal_met_count"`
	StatDate     time.Time `bun:"stat_date,nullzero"`
	Volume       float64   `bun:"volume"`
	Streak       int64     `bun:"streak"`
}

func newUserHealthStatsRecord(s *core.UserHealthStats) (*userHealthStatsRecord, error) {
	return &userHealthStatsRecord{
		ObjectID:     s.ObjectID,
		UserID:       s.UserID,
		RecentTotal:  s.RecentTotal,
		RecentGoal:   s.RecentGoal,
		BottlesSaved: s.BottlesSaved,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		Average:      s.Average,
		GoalMetCount: s.GoalMetCount,
		StatDate:     s.StatDate,
		Volume:       s.Volume,
		Streak:       s.Streak,
	}, nil
}

func (r *userHealthStatsRecord) toDomain() core.Record {
	return &core.UserHealthStats{
		ObjectID:     r.ObjectID,
		UserID:       r.UserID,
		RecentTotal:  r.RecentTotal,
		RecentGoal:   r.RecentGoal,
		BottlesSaved: r.BottlesSaved,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		Average:      r.Average,
		GoalMetCount: r.GoalMetCount,
		StatDate:     r.StatDate,
		Volume:       r.Volume,
		Streak:       r.Streak,
	}
}

type grantRecord struct {
	bun.BaseModel `bun:"table:acl_grants,alias:ag"`

	ID         string `bun:"id,pk"`
	UserID     string `bun:"user_id,notnull"`
	Permission string `bun:"permission,notnull"`
}

type recordGrantRecord struct {
	bun.BaseModel `bun:"table:record_grants,alias:rg"`

	Entity   string `bun:"entity,notnull"`
	RecordID string `bun:"record_id,notnull"`
	GrantID  string `bun:"grant_id,notnull"`
}

type sessionRecord struct {
	bun.BaseModel `bun:"table:sessions,alias:sess"`

	ID        string    `bun:"id,pk"`
	Token     string    `bun:"token,unique,notnull"`
	UserID    string    `bun:"user_id,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
