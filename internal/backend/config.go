package backend

import (
	"errors"
	"fmt"
	"strings"

	"ledger/internal/config"
)

// DefaultSlotName matches the key the browser widget used.
const DefaultSlotName = "transactions"

// Types lists the supported backends in documentation order.
var Types = []BackendType{MemoryBackend, FileBackend, SQLiteBackend}

// FromAppConfig picks the backend fields out of the application config.
// An empty slot name falls back to DefaultSlotName.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("backend: no application config")
	}

	t := BackendType(strings.ToLower(strings.TrimSpace(appConfig.DataBackend)))
	if !t.IsValid() {
		return Config{}, fmt.Errorf("backend: unknown type %q (want one of %s)", appConfig.DataBackend, typeList())
	}

	cfg := Config{
		Type:         t,
		SlotName:     appConfig.SlotName,
		DataFile:     appConfig.DataFile,
		SQLiteDBPath: appConfig.SQLiteDBPath,
	}
	if cfg.SlotName == "" {
		cfg.SlotName = DefaultSlotName
	}
	return cfg, nil
}

// Validate reports the first missing setting for the chosen type.
func (c Config) Validate() error {
	switch c.Type {
	case MemoryBackend:
		return nil
	case FileBackend:
		if c.DataFile == "" {
			return errors.New("backend: file backend needs a data file")
		}
		return nil
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("backend: sqlite backend needs a database path")
		}
		if c.SlotName == "" {
			return errors.New("backend: sqlite backend needs a slot name")
		}
		return nil
	default:
		return fmt.Errorf("backend: unknown type %q (want one of %s)", c.Type, typeList())
	}
}

func typeList() string {
	names := make([]string, len(Types))
	for i, t := range Types {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}
