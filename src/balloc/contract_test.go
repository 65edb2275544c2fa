package balloc

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Contract violations abort the process in a checked build (the default
// build, no "unchecked" tag). Exercising that requires re-invoking the
// test binary as a subprocess, the standard Go idiom for crasher tests
// (see os/exec's own TestHelperProcess pattern), since os.Exit cannot be
// observed from within the same process.

func TestDoubleFreeAbortsInCheckedBuild(t *testing.T) {
	if os.Getenv("BALLOC_CRASH_CASE") == "double_free" {
		pool := &Pool{}
		assert.NoError(t, PoolInit(pool, 0, 4, 0))
		addr, err := Alloc(pool, 0)
		assert.NoError(t, err)
		assert.NoError(t, Put(pool, addr))
		_ = Put(pool, addr) // second free of the same page: fatal
		return
	}

	out, err := runCrashCase(t, "TestDoubleFreeAbortsInCheckedBuild", "double_free")
	assertCrashed(t, out, err)
}

func TestOrderOverflowAbortsInCheckedBuild(t *testing.T) {
	if os.Getenv("BALLOC_CRASH_CASE") == "order_overflow" {
		pool := &Pool{}
		assert.NoError(t, PoolInit(pool, 0, 4, 0))
		addr, err := Alloc(pool, 0)
		assert.NoError(t, err)
		// Corrupt the head's order past the pool's max_order to
		// simulate metadata corruption ahead of Put.
		pool.entry(frameOf(pool, addr)).setOrder(pool.maxOrder + 1)
		_ = Put(pool, addr)
		return
	}

	out, err := runCrashCase(t, "TestOrderOverflowAbortsInCheckedBuild", "order_overflow")
	assertCrashed(t, out, err)
}

func runCrashCase(t *testing.T, testName, caseName string) ([]byte, error) {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=^"+testName+"$", "-test.v")
	cmd.Env = append(os.Environ(), "BALLOC_CRASH_CASE="+caseName)
	return cmd.CombinedOutput()
}

func assertCrashed(t *testing.T, out []byte, err error) {
	t.Helper()
	var exitErr *exec.ExitError
	assert.ErrorAs(t, err, &exitErr, "subprocess output:\n%s", out)
	assert.Contains(t, string(out), "contract violation")
}
