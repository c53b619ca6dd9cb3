package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Ninjaclasher/hidrateapp-server/core"
	"github.com/uptrace/bun"
)

var errWrongRecordType = errors.New("sqlstore: record does not match entity table")

// entityTable binds a wire entity to its table: primary-key column, the
// wire-field to column mapping used by query compilation, and typed
// constructors for scanning and persisting rows.
type entityTable struct {
	entity     string
	pk         string
	columns    map[string]string
	newModel   func() recordModel
	fromDomain func(core.Record) (recordModel, error)
	list       func(ctx context.Context, db bun.IDB, build func(*bun.SelectQuery) *bun.SelectQuery) ([]core.Record, error)
}

func scanRecords[T recordModel](ctx context.Context, db bun.IDB, build func(*bun.SelectQuery) *bun.SelectQuery) ([]core.Record, error) {
	var rows []T
	q := db.NewSelect().Model(&rows)
	if err := build(q).Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]core.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func fromDomainAs[T core.Record, M recordModel](convert func(T) (M, error)) func(core.Record) (recordModel, error) {
	return func(r core.Record) (recordModel, error) {
		typed, ok := r.(T)
		if !ok {
			return nil, errWrongRecordType
		}
		m, err := convert(typed)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

var entityTables = map[string]entityTable{
	core.EntityUser: {
		entity: core.EntityUser,
		pk:     "object_id",
		columns: map[string]string{
			"objectId":                    "object_id",
			"birthday":                    "birthday",
			"wakeUp":                      "wake_up",
			"goToSleep":                   "go_to_sleep",
			"sipGlow":                     "sip_glow",
			"gender":                      "gender",
			"weight":                      "weight",
			"timeZone":                    "time_zone",
			"fluidInMetric":               "fluid_in_metric",
			"elevationInMetric":           "elevation_in_metric",
			"heightInMetric":              "height_in_metric",
			"lightNotificationCount":      "light_notification_count",
			"degreesInMetric":             "degrees_in_metric",
			"appNotificationCount":        "app_notification_count",
			"name":                        "name",
			"breastfeeding":               "breastfeeding",
			"weightInMetric":              "weight_in_metric",
			"pushNotificationCount":       "push_notification_count",
			"spam":                        "spam",
			"email":                       "email",
			"activityLevel":               "activity_level",
			"username":                    "username",
			"height":                      "height",
			"createdAt":                   "created_at",
			"updatedAt":                   "updated_at",
			"agreedToTOS":                 "agreed_to_tos",
			"suppressedNotificationTypes": "suppressed_notification_types",
			"bottleVendors":               "bottle_vendors",
			"fitbitUserId":                "fitbit_user_id",
			"goal":                        "goal",
			"lightType":                   "light_type",
			"pushNotificationAlways":      "push_notification_always",
		},
		newModel:   func() recordModel { return &userRecord{} },
		fromDomain: fromDomainAs(newUserRecord),
		list:       scanRecords[*userRecord],
	},
	core.EntityBottle: {
		entity: core.EntityBottle,
		pk:     "object_id",
		columns: map[string]string{
			"objectId":                  "object_id",
			"lastSynced":                "last_synced",
			"batteryLevel":              "battery_level",
			"capacity":                  "capacity",
			"firmwareBootloaderVersion": "firmware_bootloader_version",
			"firmwareMinorVersion":      "firmware_minor_version",
			"name":                      "name",
			"serialNumber":              "serial_number",
			"user":                      "user_id",
			"shouldUpdate":              "should_update",
			"createdAt":                 "created_at",
			"updatedAt":                 "updated_at",
			"description":               "description",
			"location":                  "location",
		},
		newModel:   func() recordModel { return &bottleRecord{} },
		fromDomain: fromDomainAs(newBottleRecord),
		list:       scanRecords[*bottleRecord],
	},
	core.EntitySip: {
		entity: core.EntitySip,
		pk:     "object_id",
		columns: map[string]string{
			"objectId":           "object_id",
			"time":               "time",
			"amount":             "amount",
			"bottleSerialNumber": "bottle_serial_number",
			"day":                "day_id",
			"max":                "max",
			"min":                "min",
			"start":              "start",
			"stop":               "stop",
			"user":               "user_id",
			"createdAt":          "created_at",
			"updatedAt":          "updated_at",
		},
		newModel:   func() recordModel { return &sipRecord{} },
		fromDomain: fromDomainAs(newSipRecord),
		list:       scanRecords[*sipRecord],
	},
	core.EntityDay: {
		entity: core.EntityDay,
		pk:     "object_id",
		columns: map[string]string{
			"objectId":          "object_id",
			"user":              "user_id",
			"date":              "date",
			"totalAmount":       "total_amount",
			"totalBottleAmount": "total_bottle_amount",
			"location":          "location_id",
			"isLocationUsed":    "is_location_used",
			"recommendedGoal":   "recommended_goal",
			"goal":              "goal",
			"createdAt":         "created_at",
			"updatedAt":         "updated_at",
			"altitude":          "altitude",
			"humidity":          "humidity",
			"rank":              "rank",
			"steps":             "steps",
		},
		newModel:   func() recordModel { return &dayRecord{} },
		fromDomain: fromDomainAs(newDayRecord),
		list:       scanRecords[*dayRecord],
	},
	core.EntityLocation: {
		entity: core.EntityLocation,
		pk:     "object_id",
		columns: map[string]string{
			"objectId":  "object_id",
			"altitude":  "altitude",
			"point":     "point",
			"user":      "user_id",
			"createdAt": "created_at",
			"updatedAt": "updated_at",
		},
		newModel:   func() recordModel { return &locationRecord{} },
		fromDomain: fromDomainAs(newLocationRecord),
		list:       scanRecords[*locationRecord],
	},
	core.EntityGlow: {
		entity: core.EntityGlow,
		pk:     "id",
		columns: map[string]string{
			"id":        "id",
			"name":      "name",
			"content":   "content",
			"user":      "user_id",
			"createdAt": "created_at",
			"updatedAt": "updated_at",
		},
		newModel:   func() recordModel { return &glowRecord{} },
		fromDomain: fromDomainAs(newGlowRecord),
		list:       scanRecords[*glowRecord],
	},
	core.EntityInstallation: {
		entity: core.EntityInstallation,
		pk:     "object_id",
		columns: map[string]string{
			"objectId":         "object_id",
			"user":             "user_id",
			"deviceType":       "device_type",
			"appVersion":       "app_version",
			"appName":          "app_name",
			"timeZone":         "time_zone",
			"installationId":   "installation_id",
			"appIdentifier":    "app_identifier",
			"localeIdentifier": "locale_identifier",
			"deviceName":       "device_name",
			"pushType":         "push_type",
			"deviceToken":      "device_token",
			"createdAt":        "created_at",
			"updatedAt":        "updated_at",
		},
		newModel:   func() recordModel { return &installationRecord{} },
		fromDomain: fromDomainAs(newInstallationRecord),
		list:       scanRecords[*installationRecord],
	},
	core.EntityUserHealthStats: {
		entity: core.EntityUserHealthStats,
		pk:     "object_id",
		columns: map[string]string{
			"objectId":     "object_id",
			"user":         "user_id",
			"recentTotal":  "recent_total",
			"recentGoal":   "recent_goal",
			"bottlesSaved": "bottles_saved",
			"createdAt":    "created_at",
			"updatedAt":    "updated_at",
			"average":      "average",
			"goalMetCount": "goal_met_count",
			"statDate":     "stat_date",
			"volume":       "volume",
			"streak":       "streak",
		},
		newModel:   func() recordModel { return &userHealthStatsRecord{} },
		fromDomain: fromDomainAs(newUserHealthStatsRecord),
		list:       scanRecords[*userHealthStatsRecord],
	},
}

func tableFor(entity string) (entityTable, error) {
	t, ok := entityTables[entity]
	if !ok {
		return entityTable{}, fmt.Errorf("sqlstore: unknown entity %q", entity)
	}
	return t, nil
}

// conditionValue prepares a compiled filter value for SQL comparison.
// Opaque documents compare by their canonical JSON encoding.
func conditionValue(value any) (any, error) {
	switch value.(type) {
	case map[string]any, []any:
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	case json.Number:
		return fmt.Sprint(value), nil
	default:
		return value, nil
	}
}
