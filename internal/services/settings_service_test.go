package services

import (
	"context"
	"errors"
	"testing"

	"conto/internal/core"
)

type rawSettings struct {
	p   core.ProportionSettings
	err error
}

func (r *rawSettings) LoadProportions(context.Context) (core.ProportionSettings, error) {
	return r.p, r.err
}

func (r *rawSettings) SaveProportions(_ context.Context, p core.ProportionSettings) error {
	r.p = p
	return r.err
}

func TestSetProportionsValidates(t *testing.T) {
	tests := []struct {
		name    string
		p       core.ProportionSettings
		wantErr bool
	}{
		{"even", core.ProportionSettings{P1: 50, P2: 50}, false},
		{"uneven", core.ProportionSettings{P1: 45, P2: 55}, false},
		{"all on one", core.ProportionSettings{P1: 100, P2: 0}, false},
		{"sum too high", core.ProportionSettings{P1: 60, P2: 60}, true},
		{"negative", core.ProportionSettings{P1: -10, P2: 110}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewSettingsService(NewMemorySettings())
			err := svc.SetProportions(context.Background(), tt.p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, core.ErrInvalidProportions) {
				t.Fatalf("expected ErrInvalidProportions, got %v", err)
			}
		})
	}
}

func TestProportionsNormalizesStoredValue(t *testing.T) {
	raw := &rawSettings{p: core.ProportionSettings{P1: 30, P2: 10}}
	svc := NewSettingsService(raw)

	got := svc.Proportions(context.Background())
	if got.P1 != 75 || got.P2 != 25 {
		t.Fatalf("normalized = %+v, want 75/25", got)
	}
}

func TestProportionsFallsBackOnError(t *testing.T) {
	svc := NewSettingsService(&rawSettings{err: errors.New("locked")})
	if got := svc.Proportions(context.Background()); got != core.DefaultProportions() {
		t.Fatalf("got %+v, want default", got)
	}
}
