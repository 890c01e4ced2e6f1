package discovery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
	"github.com/JakeFAU/courthouse-harvester/internal/urlutil"
)

// FieldPaths maps JSON items onto record fields. Paths are dot separated
// object keys; an empty path leaves the field unset.
type FieldPaths struct {
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
	URL     string `mapstructure:"url"`
	City    string `mapstructure:"city"`
	Phone   string `mapstructure:"phone"`
	Fax     string `mapstructure:"fax"`
	Email   string `mapstructure:"email"`
}

func (f FieldPaths) withDefaults() FieldPaths {
	if f.Name == "" {
		f.Name = "title"
	}
	if f.Address == "" {
		f.Address = "address.address_line"
	}
	if f.URL == "" {
		f.URL = "url"
	}
	return f
}

// ItemMapper turns decoded JSON items into record sources.
type ItemMapper struct {
	mode   harvest.Mode
	fields FieldPaths
	base   string
	logger *zap.Logger
}

// NewItemMapper resolves item URLs against base.
func NewItemMapper(mode harvest.Mode, fields FieldPaths, base string, logger *zap.Logger) ItemMapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return ItemMapper{mode: mode, fields: fields.withDefaults(), base: base, logger: logger}
}

// Source prefers an inline record in listing mode and a detail URL in
// detail mode. Items offering neither are skipped.
func (m ItemMapper) Source(item any) (harvest.RecordSource, bool) {
	rec := harvest.RawRecord{
		Name:    stringAt(item, m.fields.Name),
		Address: stringAt(item, m.fields.Address),
		City:    stringAt(item, m.fields.City),
		Phone:   stringAt(item, m.fields.Phone),
		Fax:     stringAt(item, m.fields.Fax),
		Email:   stringAt(item, m.fields.Email),
	}
	if raw := stringAt(item, m.fields.URL); raw != "" {
		if resolved, ok := urlutil.Resolve(m.base, raw); ok {
			rec.URL = resolved
		}
	}
	if rec.City == "" {
		rec.City = rec.Name
	}
	inline := rec.Name != "" && rec.Address != ""

	switch {
	case m.mode == harvest.ModeDetail && rec.URL != "":
		return harvest.URLSource(rec.URL), true
	case inline:
		return harvest.InlineSource(rec), true
	case rec.URL != "":
		return harvest.URLSource(rec.URL), true
	}
	m.logger.Debug("item skipped", zap.String("name", rec.Name))
	return harvest.RecordSource{}, false
}

func decodeJSON(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return value, nil
}

// lookup walks a dotted path through nested objects. The empty path is the
// root itself.
func lookup(root any, path string) (any, bool) {
	if path == "" {
		return root, true
	}
	current := root
	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return current, true
}

func stringAt(root any, path string) string {
	if path == "" {
		return ""
	}
	value, ok := lookup(root, path)
	if !ok {
		return ""
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	}
	return ""
}

func listAt(root any, path string) []any {
	value, ok := lookup(root, path)
	if !ok {
		return nil
	}
	list, _ := value.([]any)
	return list
}

// truthy reports whether a "has next page" marker says to continue.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case json.Number:
		return v.String() != "0"
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	return true
}
