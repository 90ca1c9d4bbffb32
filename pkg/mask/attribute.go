package mask

import (
	"fmt"
	"strings"
)

// AttributeType tags a fragment as carrying an emotion or an identity.
type AttributeType int

const (
	AttributeEmotion AttributeType = iota
	AttributeIdentity
)

var attributeNames = [...]string{"Emotion", "Identity"}

func (a AttributeType) String() string {
	if a < 0 || int(a) >= len(attributeNames) {
		return fmt.Sprintf("AttributeType(%d)", int(a))
	}
	return attributeNames[a]
}

// Valid reports whether a is a declared attribute type.
func (a AttributeType) Valid() bool {
	return a >= 0 && int(a) < len(attributeNames)
}

// ParseAttributeType parses a case-insensitive attribute name.
func ParseAttributeType(s string) (AttributeType, error) {
	for i, name := range attributeNames {
		if strings.EqualFold(s, name) {
			return AttributeType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown attribute type: %q", s)
}

func (a AttributeType) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("invalid attribute type: %d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *AttributeType) UnmarshalText(text []byte) error {
	v, err := ParseAttributeType(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// EmotionType is a specific emotion value. EmotionNone marks an unused slot
// and is never counted. Declaration order is the canonical emotion order.
type EmotionType int

const (
	EmotionNone EmotionType = iota
	EmotionConfident
	EmotionReasoning
	EmotionImaginative
	EmotionAngry
	EmotionPitiful
	EmotionUnderstanding
)

var emotionNames = [...]string{
	"None",
	"Confident",
	"Reasoning",
	"Imaginative",
	"Angry",
	"Pitiful",
	"Understanding",
}

// emotionAliases accepts spellings found in older content files.
var emotionAliases = map[string]EmotionType{
	"pitful": EmotionPitiful,
}

func (e EmotionType) String() string {
	if e < 0 || int(e) >= len(emotionNames) {
		return fmt.Sprintf("EmotionType(%d)", int(e))
	}
	return emotionNames[e]
}

// Valid reports whether e is a declared emotion other than EmotionNone.
func (e EmotionType) Valid() bool {
	return e > EmotionNone && int(e) < len(emotionNames)
}

// Emotions returns every real emotion in canonical order.
func Emotions() []EmotionType {
	out := make([]EmotionType, 0, len(emotionNames)-1)
	for i := 1; i < len(emotionNames); i++ {
		out = append(out, EmotionType(i))
	}
	return out
}

// ParseEmotion parses a case-insensitive emotion name. An empty string
// parses as EmotionNone.
func ParseEmotion(s string) (EmotionType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return EmotionNone, nil
	}
	for i, name := range emotionNames {
		if strings.EqualFold(s, name) {
			return EmotionType(i), nil
		}
	}
	if e, ok := emotionAliases[strings.ToLower(s)]; ok {
		return e, nil
	}
	return EmotionNone, fmt.Errorf("unknown emotion: %q", s)
}

func (e EmotionType) MarshalText() ([]byte, error) {
	if e < 0 || int(e) >= len(emotionNames) {
		return nil, fmt.Errorf("invalid emotion: %d", int(e))
	}
	return []byte(e.String()), nil
}

func (e *EmotionType) UnmarshalText(text []byte) error {
	v, err := ParseEmotion(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// IdentityType is a specific identity value. IdentityNone is the explicit
// unresolved sentinel and is the zero value; it is never a real identity.
type IdentityType int

const (
	IdentityNone IdentityType = iota
	IdentityJournalist
	IdentityDetective
	IdentityTherapist
	IdentityDirtyCop
)

var identityNames = [...]string{
	"None",
	"Journalist",
	"Detective",
	"Therapist",
	"DirtyCop",
}

func (i IdentityType) String() string {
	if i < 0 || int(i) >= len(identityNames) {
		return fmt.Sprintf("IdentityType(%d)", int(i))
	}
	return identityNames[i]
}

// Valid reports whether i is a declared identity other than IdentityNone.
func (i IdentityType) Valid() bool {
	return i > IdentityNone && int(i) < len(identityNames)
}

// Identities returns every real identity in canonical order.
func Identities() []IdentityType {
	out := make([]IdentityType, 0, len(identityNames)-1)
	for i := 1; i < len(identityNames); i++ {
		out = append(out, IdentityType(i))
	}
	return out
}

// ParseIdentity parses a case-insensitive identity name. Underscores and
// spaces are ignored so "dirty_cop" and "Dirty Cop" both parse.
func ParseIdentity(s string) (IdentityType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return IdentityNone, nil
	}
	norm := strings.NewReplacer("_", "", " ", "", "-", "").Replace(s)
	for i, name := range identityNames {
		if strings.EqualFold(norm, name) {
			return IdentityType(i), nil
		}
	}
	return IdentityNone, fmt.Errorf("unknown identity: %q", s)
}

func (i IdentityType) MarshalText() ([]byte, error) {
	if i < 0 || int(i) >= len(identityNames) {
		return nil, fmt.Errorf("invalid identity: %d", int(i))
	}
	return []byte(i.String()), nil
}

func (i *IdentityType) UnmarshalText(text []byte) error {
	v, err := ParseIdentity(string(text))
	if err != nil {
		return err
	}
	*i = v
	return nil
}

// FragmentID is the opaque handle an inventory uses for a fragment definition.
type FragmentID string

// Attribute is the immutable definition behind a fragment.
type Attribute struct {
	ID          FragmentID    `json:"id" yaml:"id"`
	Name        string        `json:"name,omitempty" yaml:"name,omitempty"`
	Type        AttributeType `json:"type" yaml:"type"`
	Emotion     EmotionType   `json:"emotion,omitempty" yaml:"emotion,omitempty"`
	Identity    IdentityType  `json:"identity,omitempty" yaml:"identity,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
}

// Label returns the value name of the attribute, e.g. "Detective".
func (a *Attribute) Label() string {
	if a.Type == AttributeIdentity {
		return a.Identity.String()
	}
	return a.Emotion.String()
}

// DisplayText is the tooltip text shown for a fragment.
func (a *Attribute) DisplayText() string {
	text := fmt.Sprintf("%s: %s", a.Type, a.Label())
	if a.Description != "" {
		text += "\n" + a.Description
	}
	return text
}

// Validate checks that the attribute carries a value matching its type.
func (a *Attribute) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("attribute id is required")
	}
	switch a.Type {
	case AttributeEmotion:
		if !a.Emotion.Valid() {
			return fmt.Errorf("attribute %s: emotion fragment needs an emotion value", a.ID)
		}
	case AttributeIdentity:
		if !a.Identity.Valid() {
			return fmt.Errorf("attribute %s: identity fragment needs an identity value", a.ID)
		}
	default:
		return fmt.Errorf("attribute %s: invalid type %d", a.ID, int(a.Type))
	}
	return nil
}

// Fragment is a piece that can be placed into a socket. Its identity is its
// definition, not its placement; a Fragment with a nil Def is malformed.
type Fragment struct {
	Def *Attribute
}

// FragmentOf wraps a definition.
func FragmentOf(a *Attribute) Fragment {
	return Fragment{Def: a}
}

// IsZero reports whether f holds no definition.
func (f Fragment) IsZero() bool {
	return f.Def == nil
}
