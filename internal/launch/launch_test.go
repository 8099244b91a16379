package launch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/forgehand/internal/fork"
	"github.com/mattjoyce/forgehand/internal/isolation"
)

func baseSpec() Spec {
	return Assemble(
		fork.LaunchDescriptor{
			WorkingDir: "/work",
			Executable: "/jdk17/bin/java",
			Args:       []string{"--add-exports=a", "--add-exports=b", "-Xmx1g"},
		},
		isolation.Spec{Name: "compiler", Paths: []string{"/a.jar", "/b.jar"}},
		KeepAliveDaemon,
	)
}

func TestAssembleIsPure(t *testing.T) {
	first := baseSpec()
	second := baseSpec()

	assert.Equal(t, first, second)
	assert.Equal(t, first.Key(), second.Key())
}

func TestKeyDistinguishesEveryField(t *testing.T) {
	base := baseSpec()

	mutations := map[string]func(*Spec){
		"working dir":    func(s *Spec) { s.Descriptor.WorkingDir = "/other" },
		"executable":     func(s *Spec) { s.Descriptor.Executable = "/jdk8/bin/java" },
		"arg value":      func(s *Spec) { s.Descriptor.Args = []string{"--add-exports=a", "--add-exports=b", "-Xmx2g"} },
		"arg order":      func(s *Spec) { s.Descriptor.Args = []string{"--add-exports=b", "--add-exports=a", "-Xmx1g"} },
		"isolation name": func(s *Spec) { s.Isolation.Name = "other" },
		"bundle paths":   func(s *Spec) { s.Isolation.Paths = []string{"/a.jar"} },
		"keep alive":     func(s *Spec) { s.KeepAlive = KeepAliveNone },
	}

	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			changed := baseSpec()
			mutate(&changed)
			assert.NotEqual(t, base, changed)
			assert.NotEqual(t, base.Key(), changed.Key())
		})
	}
}

func TestKeyIsReproducible(t *testing.T) {
	s := baseSpec()
	key := s.Key()
	for range 10 {
		assert.Equal(t, key, s.Key())
	}
	assert.Len(t, key, 64)
}

func TestParseKeepAlive(t *testing.T) {
	for _, valid := range []string{"none", "session", "daemon"} {
		got, err := ParseKeepAlive(valid)
		require.NoError(t, err)
		assert.Equal(t, KeepAlive(valid), got)
	}

	_, err := ParseKeepAlive("forever")
	require.Error(t, err)
}
