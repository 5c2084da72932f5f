package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Title string   `validate:"required,max=5"`
	URL   string   `validate:"omitempty,url"`
	Links []string `validate:"dive,uuid"`
}

func TestValidateStruct(t *testing.T) {
	assert.NoError(t, ValidateStruct(sample{Title: "ok"}))

	err := ValidateStruct(sample{})
	assert.EqualError(t, err, "title is required")

	err = ValidateStruct(sample{Title: "too long", URL: "nope"})
	assert.EqualError(t, err, "title must be at most 5 characters; url must be a valid url")

	err = ValidateStruct(sample{Title: "ok", Links: []string{"x"}})
	assert.EqualError(t, err, "links[0] must be a valid id")
}
