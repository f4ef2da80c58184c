package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProjectPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "posix", input: "/home/dev/project", want: "/home/dev/project"},
		{name: "posix trailing slash", input: "/home/dev/project/", want: "/home/dev/project"},
		{name: "posix dot segments", input: "/home/dev/./a/../project", want: "/home/dev/project"},
		{name: "surrounding space", input: "  /srv/app  ", want: "/srv/app"},
		{name: "root", input: "/", want: "/"},
		{name: "windows backslash", input: `C:\Users\dev\project`, want: `C:\Users\dev\project`},
		{name: "windows forward slash", input: "d:/work/app", want: `D:\work\app`},
		{name: "windows drive root", input: `C:\`, want: `C:\`},
		{name: "windows dot segments", input: `C:\a\..\b\.\c`, want: `C:\b\c`},
		{name: "unc", input: `\\fileserver\share\repo`, want: `\\fileserver\share\repo`},
		{name: "empty", input: "", wantErr: ErrEmptyPath},
		{name: "blank", input: "   ", wantErr: ErrEmptyPath},
		{name: "relative", input: "project/src", wantErr: ErrRelativePath},
		{name: "dot", input: ".", wantErr: ErrRelativePath},
		{name: "drive without root", input: "C:", wantErr: ErrRelativePath},
		{name: "drive relative", input: "C:project", wantErr: ErrRelativePath},
		{name: "unc without share", input: `\\server`, wantErr: ErrMalformedPath},
		{name: "nul byte", input: "/tmp/a\x00b", wantErr: ErrMalformedPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateProjectPath(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateProjectPath_DriveHint(t *testing.T) {
	_, err := ValidateProjectPath("E:")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `E:\`)
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"myproject", "myproject"},
		{"MyProject", "myproject"},
		{"github.com/user", "github_com_user"},
		{"my-project!@#", "my_project"},
		{"__foo___bar__", "foo_bar"},
		{"项目", "default"},
		{"", "default"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Identifier(tt.input))
		})
	}
}

func TestCollectionName(t *testing.T) {
	a := CollectionName("/home/dev/app")
	b := CollectionName("/srv/app")

	assert.True(t, strings.HasPrefix(a, "project_app_"))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, CollectionName("/home/dev/app"))

	win := CollectionName(`C:\work\My App`)
	assert.True(t, strings.HasPrefix(win, "project_my_app_"))

	long := CollectionName("/x/" + strings.Repeat("verylongname", 20))
	assert.LessOrEqual(t, len(long), MaxIdentifierLength)
}
