// Package translation holds the data model for localized content: compound
// translation keys, durable translation records and the resolved values the
// engine hands back to callers.
package translation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Key is the immutable compound identifier of a single translatable value.
// EntityID is nil for global singleton keys such as homepage copy and set for
// per-entity fields such as a property title.
type Key struct {
	Namespace string
	EntityID  *uuid.UUID
	Field     string
	Locale    string
}

// NewKey builds a global key with no entity attachment.
func NewKey(namespace, field, locale string) Key {
	return Key{Namespace: namespace, Field: field, Locale: locale}
}

// NewEntityKey builds a key scoped to a specific entity.
func NewEntityKey(namespace string, entityID uuid.UUID, field, locale string) Key {
	return Key{Namespace: namespace, EntityID: &entityID, Field: field, Locale: locale}
}

// WithLocale returns a copy of the key pointing at another locale.
func (k Key) WithLocale(locale string) Key {
	k.Locale = locale
	return k
}

// EntityRef renders the entity portion of the key, empty for global keys.
// The same representation is used for the entity_id column so that the
// composite unique index never has to deal with NULLs.
func (k Key) EntityRef() string {
	if k.EntityID == nil {
		return ""
	}
	return k.EntityID.String()
}

// CacheKey renders the canonical cache key for this translation key.
func (k Key) CacheKey() string {
	return fmt.Sprintf("localize:%s:%s:%s:%s", k.Namespace, k.EntityRef(), k.Field, k.Locale)
}

func (k Key) String() string {
	return k.CacheKey()
}

// Validate checks structural validity and membership of the locale in the
// configured locale set.
func (k Key) Validate(locales []string) error {
	if strings.TrimSpace(k.Namespace) == "" {
		return &ValidationError{Reason: "namespace is required"}
	}
	if strings.TrimSpace(k.Field) == "" {
		return &ValidationError{Reason: "field is required"}
	}
	if strings.TrimSpace(k.Locale) == "" {
		return &ValidationError{Reason: "locale is required"}
	}
	for _, locale := range locales {
		if locale == k.Locale {
			return nil
		}
	}
	return &ValidationError{Reason: fmt.Sprintf("locale %q is not configured", k.Locale)}
}
