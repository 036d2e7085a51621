package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/doeshing/sentry-go/internal/domain"
)

func TestParseClassification(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    domain.ImpactLevel
		wantErr bool
	}{
		{name: "plain json", raw: `{"level":"medium"}`, want: domain.ImpactMedium},
		{name: "upper case", raw: ` {"level":"HIGH"} `, want: domain.ImpactHigh},
		{name: "wrapped in prose", raw: "Sure.\n{\"level\": \"low\"}\nHope that helps.", want: domain.ImpactLow},
		{name: "code fence", raw: "```json\n{\"level\":\"high\"}\n```", want: domain.ImpactHigh},
		{name: "two objects picks the first balanced one", raw: `{"level":"low"} or maybe {"level":"high"}`, want: domain.ImpactLow},
		{name: "brace inside string", raw: `note: {"level":"medium","why":"uses }"}`, want: domain.ImpactMedium},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "no json", raw: "high", wantErr: true},
		{name: "unknown level", raw: `{"level":"critical"}`, wantErr: true},
		{name: "non-string level", raw: `{"level":3}`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseClassification(tc.raw)
			if tc.wantErr {
				assert.True(t, errors.Is(err, domain.ErrMalformedModelOutput), "err = %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
