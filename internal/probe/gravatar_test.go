package probe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsernameFromProfile_NormalizesUsername(t *testing.T) {
	f := usernameFromProfile("github", "JDoe", "https://github.com/JDoe", "parent-id")

	assert.Equal(t, "jdoe", f.Data["username"], "platform usernames are case-insensitive")
	assert.Equal(t, "github", f.Data["platform"])
	assert.Equal(t, "Username Discovered: JDoe", f.Title, "the title keeps the display form")
	assert.Equal(t, "parent-id", f.ParentID)
}
