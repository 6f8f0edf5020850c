package model_test

import (
	"strings"
	"testing"

	"github.com/kukuri-social/kukuri/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const authorID = "3b3e4b6e-7a1c-4f7a-9a64-111111111111"

func TestValidateCreatePost(t *testing.T) {
	t.Parallel()

	t.Run("valid content passes", func(t *testing.T) {
		t.Parallel()

		input := &model.CreatePostInput{AuthorID: authorID, Content: "hello"}
		require.NoError(t, model.Validate(input))
	})

	t.Run("empty content fails", func(t *testing.T) {
		t.Parallel()

		input := &model.CreatePostInput{AuthorID: authorID, Content: ""}
		err := model.Validate(input)
		require.Error(t, err)

		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Fields, 1)
		assert.Equal(t, "content", verr.Fields[0].Field)
	})

	t.Run("oversized content fails", func(t *testing.T) {
		t.Parallel()

		input := &model.CreatePostInput{AuthorID: authorID, Content: strings.Repeat("a", 501)}
		err := model.Validate(input)

		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "content", verr.Fields[0].Field)
		assert.Contains(t, verr.Fields[0].Message, "500")
	})

	t.Run("boundary lengths pass", func(t *testing.T) {
		t.Parallel()

		for _, content := range []string{"a", strings.Repeat("a", 500)} {
			input := &model.CreatePostInput{AuthorID: authorID, Content: content}
			assert.NoError(t, model.Validate(input))
		}
	})
}

func TestValidateCreateUser(t *testing.T) {
	t.Parallel()

	t.Run("name and empty bio pass", func(t *testing.T) {
		t.Parallel()

		input := &model.CreateUserInput{DisplayName: "Ann", Bio: ""}
		require.NoError(t, model.Validate(input))
	})

	t.Run("oversized bio fails", func(t *testing.T) {
		t.Parallel()

		input := &model.CreateUserInput{DisplayName: "Ann", Bio: strings.Repeat("b", 161)}
		err := model.Validate(input)

		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "bio", verr.Fields[0].Field)
	})

	t.Run("every offending field is reported", func(t *testing.T) {
		t.Parallel()

		input := &model.CreateUserInput{
			DisplayName: strings.Repeat("n", 51),
			Bio:         strings.Repeat("b", 161),
		}
		err := model.Validate(input)

		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Len(t, verr.Fields, 2)
	})
}

func TestProfileUpdate(t *testing.T) {
	t.Parallel()

	t.Run("only present fields are carried", func(t *testing.T) {
		t.Parallel()

		update := model.NewProfileUpdate().Bio("new bio")
		require.NoError(t, update.Validate())

		fields := update.Fields()
		assert.Len(t, fields, 1)
		assert.Equal(t, "new bio", fields[model.FieldBio])
	})

	t.Run("empty update", func(t *testing.T) {
		t.Parallel()

		assert.True(t, model.NewProfileUpdate().Empty())
	})

	t.Run("present field is validated", func(t *testing.T) {
		t.Parallel()

		update := model.NewProfileUpdate().DisplayName("")
		err := update.Validate()

		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, model.FieldDisplayName, verr.Fields[0].Field)
	})
}

func TestSettingsUpdate(t *testing.T) {
	t.Parallel()

	t.Run("apply touches only present keys", func(t *testing.T) {
		t.Parallel()

		settings := model.DefaultSettings()
		settings.Language = "en"

		update := model.NewSettingsUpdate().Theme(model.ThemeDark)
		require.NoError(t, update.Validate())

		update.Apply(settings)
		assert.Equal(t, model.ThemeDark, settings.Theme)
		assert.Equal(t, "en", settings.Language)
		assert.True(t, settings.Notifications)
	})

	t.Run("invalid theme rejected", func(t *testing.T) {
		t.Parallel()

		update := model.NewSettingsUpdate().Theme("neon")
		err := update.Validate()

		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, model.FieldTheme, verr.Fields[0].Field)
	})

	t.Run("invalid relay rejected", func(t *testing.T) {
		t.Parallel()

		update := model.NewSettingsUpdate().SelectedRelays([]string{"not a url"})
		assert.Error(t, update.Validate())
	})
}

func TestUserEqual(t *testing.T) {
	t.Parallel()

	a := &model.User{ID: "u1", DisplayName: "Ann", Following: []string{"u2"}, CreatedAt: 1}
	b := &model.User{ID: "u1", DisplayName: "Ann", Following: []string{"u2"}, CreatedAt: 1}
	assert.True(t, a.Equal(b))

	b.Following = []string{"u2", "u3"}
	assert.False(t, a.Equal(b))
}

func TestUserFollows(t *testing.T) {
	t.Parallel()

	user := &model.User{ID: "u1", Following: []string{"u2"}}
	assert.True(t, user.Follows("u2"))
	assert.False(t, user.Follows("u3"))
}
