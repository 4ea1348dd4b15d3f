package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTitle(t *testing.T) {
	tests := []struct {
		wantErr error
		name    string
		title   string
	}{
		{name: "simple", title: "Meeting notes"},
		{name: "unicode", title: "Заметки 📝"},
		{name: "max length in runes", title: strings.Repeat("я", MaxTitleLen)},
		{name: "empty", title: "", wantErr: ErrTitleRequired},
		{name: "blank", title: "  \t", wantErr: ErrTitleRequired},
		{name: "too long", title: strings.Repeat("a", MaxTitleLen+1), wantErr: ErrTitleTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTitle(tt.title)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidateUserID(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		wantErr bool
		errMsg  string
	}{
		{name: "plain", userID: "alice"},
		{name: "email like", userID: "alice.smith@example.com"},
		{name: "uuid", userID: "0b5f6a1e-8a52-4c4e-9d2b-1f3e2a9c7d10"},
		{name: "single char", userID: "a"},
		{name: "empty", userID: "", wantErr: true, errMsg: "cannot be empty"},
		{name: "space", userID: "alice smith", wantErr: true, errMsg: "can only contain"},
		{name: "slash", userID: "../root", wantErr: true, errMsg: "can only contain"},
		{name: "too long", userID: strings.Repeat("a", MaxUserIDLen+1), wantErr: true, errMsg: "must not exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserID(tt.userID)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}
