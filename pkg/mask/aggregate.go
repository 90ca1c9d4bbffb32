package mask

// Counts tallies equipped fragments per tag value.
type Counts struct {
	Identities map[IdentityType]int
	Emotions   map[EmotionType]int
}

// Aggregate counts identity and emotion tags across fragments. Fragments
// without a definition are skipped, and the None sentinels never accumulate.
// The result depends only on the multiset of fragments, not their order.
func Aggregate(fragments []Fragment) Counts {
	c := Counts{
		Identities: make(map[IdentityType]int),
		Emotions:   make(map[EmotionType]int),
	}

	for _, f := range fragments {
		if f.Def == nil {
			continue
		}
		switch f.Def.Type {
		case AttributeEmotion:
			if f.Def.Emotion.Valid() {
				c.Emotions[f.Def.Emotion]++
			}
		case AttributeIdentity:
			if f.Def.Identity.Valid() {
				c.Identities[f.Def.Identity]++
			}
		}
	}

	return c
}

// Total returns the number of counted fragments.
func (c Counts) Total() int {
	n := 0
	for _, v := range c.Identities {
		n += v
	}
	for _, v := range c.Emotions {
		n += v
	}
	return n
}
