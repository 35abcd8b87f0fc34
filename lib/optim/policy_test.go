package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoviat/capsynth/lib/geom"
	"github.com/xoviat/capsynth/lib/verify"
)

func TestInitialDraftsSynthesize(t *testing.T) {
	r := geom.DefaultRules()
	for _, v := range geom.Variants() {
		for _, shield := range []bool{false, true} {
			p := PolicyFor(v).Initial(r, []string{"M1", "M2", "M3"})
			_, err := geom.Synthesize(p, r, v, shield)
			assert.NoError(t, err, "%s shield=%v", v, shield)
		}
	}
}

func TestFingerCoarse(t *testing.T) {
	r := geom.DefaultRules()
	p := geom.ParameterSet{Count: 8, Length: 4, Layers: []string{"M1", "M2"}}

	next, field := fingerPolicy{}.Coarse(p, r, 0.5)
	assert.Equal(t, geom.FieldCount, field)
	assert.Equal(t, 4, next.Count)
	assert.Equal(t, 8, p.Count, "receiver untouched")

	// no change from rounding still moves one finger
	next, _ = fingerPolicy{}.Coarse(p, r, 1.05)
	assert.Equal(t, 9, next.Count)

	// below two fingers the length takes the rest
	next, _ = fingerPolicy{}.Coarse(geom.ParameterSet{Count: 4, Length: 4}, r, 0.25)
	assert.Equal(t, 2, next.Count)
	assert.Equal(t, 2.0, next.Length)

	// past the cap a layer is added
	next, field = fingerPolicy{}.Coarse(geom.ParameterSet{Count: 100, Length: 4, Layers: []string{"M1", "M2"}}, r, 2)
	assert.Equal(t, geom.FieldLayers, field)
	assert.Equal(t, []string{"M1", "M2", "M3"}, next.Layers)
	assert.Equal(t, 128, next.Count)
}

func TestSandwichCoarse(t *testing.T) {
	r := geom.DefaultRules()
	p := geom.ParameterSet{Width: 2, Length: 2, Layers: []string{"M1", "M2"}}

	next, field := sandwichPolicy{}.Coarse(p, r, 3)
	assert.Equal(t, geom.FieldLayers, field)
	assert.Equal(t, []string{"M1", "M2", "M3"}, next.Layers)
	assert.Equal(t, 3.0, next.Width)

	next, field = sandwichPolicy{}.Coarse(geom.ParameterSet{Width: 2, Layers: []string{"M1", "M2", "M3"}}, r, 0.4)
	assert.Equal(t, geom.FieldLayers, field)
	assert.Equal(t, []string{"M1", "M2"}, next.Layers)
	assert.Equal(t, 1.6, next.Width)

	next, field = sandwichPolicy{}.Coarse(p, r, 1.5)
	assert.Equal(t, geom.FieldWidth, field)
	assert.Equal(t, 3.0, next.Width)
}

func TestFineStepIsBounded(t *testing.T) {
	r := geom.DefaultRules()
	p := geom.ParameterSet{Length: 4, Width: 1}

	assert.Equal(t, 5.0, fine(p, r, 3, 0.25).Length)
	assert.Equal(t, 3.0, fine(p, r, 0.1, 0.25).Length)
	assert.Equal(t, 4.2, fine(p, r, 1.05, 0.25).Length)
	assert.Equal(t, 1.0, fine(p, r, 1.05, 0.25).Width)

	// a step smaller than the grid still moves one grid step
	assert.Equal(t, 4.005, fine(p, r, 1.0001, 0.25).Length)
	assert.Equal(t, 4.0, fine(p, r, 1, 0.25).Length)
}

func TestRuleField(t *testing.T) {
	cases := []struct {
		v    verify.Violation
		want string
	}{
		{verify.Violation{Rule: verify.RuleMinWidth}, geom.FieldWidth},
		{verify.Violation{Rule: verify.RuleMinWidth, Role: geom.RoleShield}, geom.FieldShieldWidth},
		{verify.Violation{Rule: verify.RuleMinSpacing}, geom.FieldSpacing},
		{verify.Violation{Rule: verify.RuleMinSpacing, Role: geom.RoleShield}, geom.FieldShieldGap},
		{verify.Violation{Rule: verify.RuleViaEnclosure}, geom.FieldFrameWidth},
		{verify.Violation{Rule: verify.RuleMinArea}, geom.FieldLength},
		{verify.Violation{Rule: "antenna"}, ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ruleField(c.v), c.v.Rule)
	}
}

func TestNudge(t *testing.T) {
	r := geom.DefaultRules()
	p := geom.ParameterSet{Count: 4, Width: 0.05, Length: 4}

	next, ok := nudge(p, r, geom.FieldWidth, 0.1)
	require.True(t, ok)
	assert.Equal(t, 0.1, next.Width)

	next, ok = nudge(p, r, geom.FieldLength, 0)
	require.True(t, ok)
	assert.Equal(t, 4.4, next.Length)

	next, ok = nudge(p, r, geom.FieldCount, 0)
	require.True(t, ok)
	assert.Equal(t, 5, next.Count)

	_, ok = nudge(p, r, geom.FieldLayers, 0)
	assert.False(t, ok)
}

func TestConstraintsMergeKeepsLargerFloor(t *testing.T) {
	c := Constraints{geom.FieldSpacing: 0.2, geom.FieldWidth: 0.1}.Merge(Constraints{geom.FieldSpacing: 0.15, geom.FieldLength: 3})
	assert.Equal(t, Constraints{geom.FieldSpacing: 0.2, geom.FieldWidth: 0.1, geom.FieldLength: 3}, c)
}

func TestFloors(t *testing.T) {
	p := geom.ParameterSet{Width: 0.05, Length: 4, Spacing: 0.12, ShieldGap: 0.2}
	report := &verify.RuleReport{Violations: []verify.Violation{
		{Rule: verify.RuleMinWidth, Role: geom.RoleFinger, Limit: 0.1},
		{Rule: verify.RuleMinSpacing, Role: geom.RoleShield, Limit: 0.1},
		{Rule: "density"},
	}}

	assert.Equal(t, Constraints{
		geom.FieldWidth:     0.1,
		geom.FieldShieldGap: 0.22,
		geom.FieldLength:    4.4,
	}, Floors(p, geom.DefaultRules(), report))
	assert.Empty(t, Floors(p, geom.DefaultRules(), &verify.RuleReport{Pass: true}))
}

func TestBestFold(t *testing.T) {
	rounds := []Round{
		{HasMeasurement: false},
		{HasMeasurement: true, ErrorPercent: 5},
		{HasMeasurement: true, ErrorPercent: 2},
		{HasMeasurement: true, ErrorPercent: 2},
		{HasMeasurement: true, ErrorPercent: 9},
	}
	assert.Equal(t, 2, best(rounds))
	assert.Equal(t, -1, best(rounds[:1]))
	assert.Equal(t, -1, best(nil))
}
