package model

import (
	"encoding/json"
	"strconv"
)

const (
	SettingAllowDuplicateTabs       = "allowDuplicateTabs"
	SettingAllowDuplicateGroups     = "allowDuplicateGroups"
	SettingDeleteUnlockedEmptyGroup = "deleteUnlockedEmptyGroup"
	SettingLanguage                 = "language"
	SettingAutoSync                 = "autoSync"
	SettingAutoSyncInterval         = "autoSyncInterval"
	SettingAutoSyncType             = "autoSyncType"
)

// DeviceLocalSettings never take the remote value during a sync.
var DeviceLocalSettings = []string{SettingAutoSync, SettingAutoSyncInterval, SettingAutoSyncType}

// Settings is the flat feature-flag record. Values come back from JSON, so
// the accessors tolerate float64 numbers and string booleans.
type Settings map[string]any

func DefaultSettings() Settings {
	return Settings{
		SettingAllowDuplicateTabs:       false,
		SettingAllowDuplicateGroups:     false,
		SettingDeleteUnlockedEmptyGroup: true,
		SettingLanguage:                 "en",
		SettingAutoSync:                 false,
		SettingAutoSyncInterval:         30,
		SettingAutoSyncType:             "auto",
	}
}

func (s Settings) Clone() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// WithDefaults returns a copy where missing keys take their default value.
func (s Settings) WithDefaults() Settings {
	out := DefaultSettings()
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (s Settings) Bool(key string) bool {
	switch v := s.WithDefaults()[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	return false
}

func (s Settings) Int(key string) int {
	switch v := s.WithDefaults()[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

func (s Settings) String(key string) string {
	if v, ok := s.WithDefaults()[key].(string); ok {
		return v
	}
	return ""
}

// MergeSettings lays local over remote. Device-local keys always keep the
// local value, even when local lacks them.
func MergeSettings(local, remote Settings) Settings {
	out := make(Settings, len(local)+len(remote))
	for k, v := range remote {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return keepDeviceLocal(out, local)
}

// AdoptRemoteSettings takes remote wholesale apart from the device-local keys.
func AdoptRemoteSettings(local, remote Settings) Settings {
	return keepDeviceLocal(remote.Clone(), local)
}

func keepDeviceLocal(out, local Settings) Settings {
	for _, key := range DeviceLocalSettings {
		if v, ok := local[key]; ok {
			out[key] = v
		} else {
			delete(out, key)
		}
	}
	return out
}
