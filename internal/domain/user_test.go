package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUser_FullName(t *testing.T) {
	cases := []struct {
		name string
		user User
		want string
	}{
		{"both names", User{FirstName: "Amara", LastName: "Okafor"}, "Amara Okafor"},
		{"first only", User{FirstName: "Amara"}, "Amara"},
		{"last only", User{LastName: "Okafor"}, "Okafor"},
		{"neither", User{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.user.FullName())
		})
	}
}
