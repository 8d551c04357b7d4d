package flagcore

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/flagcore/flagcore-go/internal/ldvalue"
)

// User is the static profile associated with one client instance (spec.md
// §3). It is replaced wholesale by Identify, never mutated in place.
type User struct {
	Key                   string
	Anonymous             bool
	IP                    string
	FirstName             string
	LastName              string
	Email                 string
	Name                  string
	Avatar                string
	Country               string
	Secondary             string
	Custom                ldvalue.Value // ObjectType, or the zero Value for "none"
	PrivateAttributeNames map[string]struct{}
}

// NewUser builds a User for key. If key is empty, a random hex identifier is
// generated, matching spec.md §3's "auto-generated device id or random hex
// if absent" (device-id generation itself is a platform collaborator
// outside this package's scope, so a random identifier is used here).
func NewUser(key string) User {
	if key == "" {
		key = randomHex(16)
	}
	return User{Key: key}
}

// NewAnonymousUser builds an anonymous User, auto-generating a key if one
// isn't supplied.
func NewAnonymousUser(key string) User {
	u := NewUser(key)
	u.Anonymous = true
	return u
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithPrivateAttributes returns a copy of u with the given top-level
// attribute names marked private (not emitted in event user objects).
func (u User) WithPrivateAttributes(names ...string) User {
	out := u
	out.PrivateAttributeNames = map[string]struct{}{}
	for k := range u.PrivateAttributeNames {
		out.PrivateAttributeNames[k] = struct{}{}
	}
	for _, n := range names {
		out.PrivateAttributeNames[n] = struct{}{}
	}
	return out
}

// WithCustom returns a copy of u with Custom replaced.
func (u User) WithCustom(custom ldvalue.Value) User {
	out := u
	out.Custom = custom
	return out
}

// contextKind returns "anonymousUser" or "user" per spec.md §3.
func (u User) contextKind() string {
	if u.Anonymous {
		return "anonymousUser"
	}
	return "user"
}

var standardStringAttrs = []struct {
	name string
	get  func(User) string
}{
	{"ip", func(u User) string { return u.IP }},
	{"firstName", func(u User) string { return u.FirstName }},
	{"lastName", func(u User) string { return u.LastName }},
	{"email", func(u User) string { return u.Email }},
	{"name", func(u User) string { return u.Name }},
	{"avatar", func(u User) string { return u.Avatar }},
	{"country", func(u User) string { return u.Country }},
	{"secondary", func(u User) string { return u.Secondary }},
}

// ToValue encodes u as the JSON object shape used both on the wire
// (poll/stream requests) and in inlined event users. allAttributesPrivate
// and globalPrivateNames implement the config-level redaction policy;
// perUserPrivateNames is u.PrivateAttributeNames. The "key" attribute is
// never redacted (spec.md §6.5).
func (u User) ToValue(allAttributesPrivate bool, globalPrivateNames map[string]struct{}) ldvalue.Value {
	isPrivate := func(name string) bool {
		if allAttributesPrivate {
			return true
		}
		if _, ok := globalPrivateNames[name]; ok {
			return true
		}
		if _, ok := u.PrivateAttributeNames[name]; ok {
			return true
		}
		return false
	}

	b := ldvalue.NewObjectBuilder().Set("key", ldvalue.String(u.Key))
	if u.Anonymous {
		b.Set("anonymous", ldvalue.Bool(true))
	}

	var redacted []string
	for _, attr := range standardStringAttrs {
		val := attr.get(u)
		if val == "" {
			continue
		}
		if isPrivate(attr.name) {
			redacted = append(redacted, attr.name)
			continue
		}
		b.Set(attr.name, ldvalue.String(val))
	}

	if u.Custom.Type() == ldvalue.ObjectType {
		customB := ldvalue.NewObjectBuilder()
		u.Custom.ForEachKey(func(key string, item ldvalue.Value) {
			if isPrivate(key) {
				redacted = append(redacted, key)
				return
			}
			customB.Set(key, item)
		})
		custom := customB.Build()
		if custom.Count() > 0 {
			b.Set("custom", custom)
		}
	}

	if len(redacted) > 0 {
		items := make([]ldvalue.Value, len(redacted))
		for i, n := range redacted {
			items[i] = ldvalue.String(n)
		}
		b.Set("privateAttrs", ldvalue.Array(items...))
	}

	return b.Build()
}
