package wheelwright

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ReleaseVersionSuite struct {
	suite.Suite
}

func TestReleaseVersionSuite(t *testing.T) {
	suite.Run(t, new(ReleaseVersionSuite))
}

func (s *ReleaseVersionSuite) TestInvalidVersionsReturnErrors() {
	for _, tag := range []string{"", "1", "1.5", "v1.5.7", "1.5.7-", "release"} {
		v, err := NewReleaseVersion(tag)
		s.Error(err, tag)
		s.Nil(v)
	}
}

func (s *ReleaseVersionSuite) TestSuffixedTagSplitsIntoUpstreamAndSuffix() {
	v, err := NewReleaseVersion("1.5.7-a3")
	s.Require().NoError(err)

	s.Equal("1.5.7-a3", v.String())
	s.Equal("1.5.7", v.Upstream())
	s.Equal("a3", v.Suffix())
	s.False(v.IsFinal())
}

func (s *ReleaseVersionSuite) TestFinalVersionHasEmptySuffix() {
	v, err := NewReleaseVersion("1.5.7")
	s.Require().NoError(err)

	s.Equal("1.5.7", v.Upstream())
	s.Equal("", v.Suffix())
	s.True(v.IsFinal())
}

func (s *ReleaseVersionSuite) TestPackageVersionJoinsNonEmptyComponents() {
	for tag, expected := range map[string]string{
		"1.5.7-a3":    "1.5.7.a3",
		"1.5.7":       "1.5.7",
		"1.5.7-rc0":   "1.5.7.rc0",
		"2.0.0-a1.b2": "2.0.0.a1.b2",
	} {
		v, err := NewReleaseVersion(tag)
		s.Require().NoError(err)
		s.Equal(expected, v.Package(), tag)
	}
}

func (s *ReleaseVersionSuite) TestComparisonsFollowSemverOrdering() {
	older, err := NewReleaseVersion("1.5.7-a1")
	s.Require().NoError(err)
	newer, err := NewReleaseVersion("1.5.7")
	s.Require().NoError(err)

	s.True(older.IsLessThan(newer))
	s.True(newer.IsGreaterThan(older))
	s.False(older.IsGreaterThan(newer))
}

func (s *ReleaseVersionSuite) TestNormalizeCollapsesSeparatorRuns() {
	s.Equal("terraform_binary_wheel", Normalize("terraform-binary-wheel"))
	s.Equal("1_5_7", Normalize("1.5.7"))
	s.Equal("a_b", Normalize("a-_.b"))
	s.Equal("plain", Normalize("plain"))
}
