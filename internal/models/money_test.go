package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		price   json.Number
		want    int64
		wantErr bool
	}{
		{price: "0", want: 0},
		{price: "499", want: 49900},
		{price: "19.99", want: 1999},
		{price: "0.1", want: 10},
		{price: "1.005", wantErr: true},
		{price: "4.35", want: 435},
		{price: "1e3", want: 100000},
		{price: "92233720368547758.07", want: 9223372036854775807},
		{price: "92233720368547758.08", wantErr: true},
		{price: "123456789012.34", want: 12345678901234},
		{price: "-5", wantErr: true},
		{price: "abc", wantErr: true},
		{price: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.price), func(t *testing.T) {
			got, err := ToMinorUnits(tt.price)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMinorUnitsIsExactForEveryCent(t *testing.T) {
	for major := int64(0); major < 50; major++ {
		for cents := int64(0); cents < 100; cents++ {
			price := json.Number(FormatMinorUnits(major*100 + cents))
			got, err := ToMinorUnits(price)
			require.NoError(t, err)
			require.Equal(t, major*100+cents, got, "price %s", price)
		}
	}
}

func TestFormatMinorUnits(t *testing.T) {
	assert.Equal(t, "0.00", FormatMinorUnits(0))
	assert.Equal(t, "499.00", FormatMinorUnits(49900))
	assert.Equal(t, "19.99", FormatMinorUnits(1999))
	assert.Equal(t, "-0.05", FormatMinorUnits(-5))
}

func TestRefUnmarshal(t *testing.T) {
	var e Enrollment
	require.NoError(t, json.Unmarshal([]byte(`{"student":"s1","course":{"_id":"c1","title":"Go"},"paymentStatus":"completed"}`), &e))
	assert.Equal(t, "s1", e.Student.ID)
	assert.Equal(t, "c1", e.Course.ID)
	assert.Equal(t, "Go", e.Course.Title)
	assert.True(t, e.Grants())

	require.NoError(t, json.Unmarshal([]byte(`{"course":null,"paymentStatus":"pending"}`), &e))
	assert.Empty(t, e.Course.ID)
	assert.False(t, e.Grants())

	require.NoError(t, json.Unmarshal([]byte(`{"course":"c1"}`), &e))
	assert.False(t, e.Grants(), "missing status does not grant access")
}

func TestCourseHelpers(t *testing.T) {
	c := Course{Title: "Go: Concurrency Patterns!", Price: "0"}
	assert.Equal(t, "go-concurrency-patterns", c.Slug())
	assert.True(t, c.IsFree())

	c.Price = "12.50"
	minor, ok := c.PriceMinor()
	assert.True(t, ok)
	assert.Equal(t, int64(1250), minor)
	assert.False(t, c.IsFree())

	assert.Equal(t, "course", Course{Title: "!!!"}.Slug())
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("Admin"))
	assert.Equal(t, RoleFaculty, ParseRole(" teacher "))
	assert.Equal(t, RoleStudent, ParseRole("anything"))
	assert.False(t, UserRole("root").Valid())
}
