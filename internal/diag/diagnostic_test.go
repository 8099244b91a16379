package diag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosticError(t *testing.T) {
	d := &Diagnostic{
		ID:          IDMissingLegacyArchive,
		Label:       "Missing legacy archive",
		Category:    CategoryToolchain,
		Message:     "the legacy compiler archive cannot be found",
		Suggestions: []string{"check the install", "check for corruption"},
		Severity:    SeverityError,
	}

	msg := d.Error()
	assert.Contains(t, msg, IDMissingLegacyArchive)
	assert.Contains(t, msg, "check the install")
}

func TestDiagnosticUnwrap(t *testing.T) {
	cause := errors.New("no such file")
	d := &Diagnostic{ID: IDWorkerStartFailed, Message: "worker failed", Cause: cause}

	assert.ErrorIs(t, d, cause)
}

func TestAsThroughWrapping(t *testing.T) {
	r := NewReporter("test")
	d := r.Report(IDExecutableNotFound, "Executable not found", CategoryToolchain,
		"java executable missing", nil, SeverityError, nil)

	err := fmt.Errorf("resolve toolchain: %w", r.Raise(d))

	got, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, IDExecutableNotFound, got.ID)
	assert.True(t, IsID(err, IDExecutableNotFound))
	assert.False(t, IsID(err, IDMissingLegacyArchive))
}

func TestWithContext(t *testing.T) {
	d := (&Diagnostic{ID: "x"}).WithContext("runtime_home", "/jdk8")
	assert.Equal(t, "/jdk8", d.Context["runtime_home"])
}
