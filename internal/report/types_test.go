package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSections_EmptyMeansAll(t *testing.T) {
	assert.Equal(t, bodySectionOrder, resolveSections(nil))
	assert.Equal(t, bodySectionOrder, resolveSections([]string{}))
}

func TestResolveSections_FiltersAndPreservesFixedOrder(t *testing.T) {
	got := resolveSections([]string{SectionHealth, SectionPriceOverview})
	assert.Equal(t, []string{SectionPriceOverview, SectionHealth}, got)
}

func TestResolveSections_IgnoresUnknownTags(t *testing.T) {
	got := resolveSections([]string{"bogus"})
	assert.Empty(t, got)
}

func TestIncludedSet_MembershipOnly(t *testing.T) {
	set := includedSet([]string{SectionHealth})
	assert.True(t, set[SectionHealth])
	assert.False(t, set[SectionAnomalies])
}
