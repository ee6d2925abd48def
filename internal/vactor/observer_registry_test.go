package vactor

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

type testObserver struct {
	id int
}

func (t *testObserver) ObserverInterfaceName() string { return "TestObserver" }

func newObserverRegistryFixture() *ObserverRegistry {
	interfaces := NewInterfaceRegistry()
	_ = interfaces.Register(&InterfaceDescriptor{
		InterfaceID: 9,
		Name:        "TestObserver",
		IsObserver:  true,
	})

	return NewObserverRegistry(interfaces)
}

// TestInstallObserverIdempotent verifies that installing the same object
// repeatedly returns identity-equal results.
func TestInstallObserverIdempotent(t *testing.T) {
	t.Parallel()

	reg := newObserverRegistryFixture()
	obs := &testObserver{id: 1}

	id1, err := InstallObserver(reg, obs, "", "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		id2, err := InstallObserver(reg, obs, "", "")
		require.NoError(t, err)
		require.Equal(t, id1, id2)
	}
}

// TestInstallObserverRejectsDifferentID verifies that reinstalling the same
// object with a different explicit id is a config error.
func TestInstallObserverRejectsDifferentID(t *testing.T) {
	t.Parallel()

	reg := newObserverRegistryFixture()
	obs := &testObserver{id: 1}

	_, err := InstallObserver(reg, obs, "", "first")
	require.NoError(t, err)

	_, err = InstallObserver(reg, obs, "", "second")
	require.ErrorIs(t, err, ErrConfigError)
}

// TestInstallObserverIDClash verifies that installing a distinct object at
// an id already claimed by a live observer fails with ErrIDClash.
func TestInstallObserverIDClash(t *testing.T) {
	t.Parallel()

	reg := newObserverRegistryFixture()

	obs1 := &testObserver{id: 1}
	obs2 := &testObserver{id: 2}

	_, err := InstallObserver(reg, obs1, "", "shared")
	require.NoError(t, err)

	_, err = InstallObserver(reg, obs2, "", "shared")
	require.ErrorIs(t, err, ErrIDClash)
}

// TestInstallObserverNoFactory verifies that an unresolvable interface
// hint fails with ErrNoFactory.
func TestInstallObserverNoFactory(t *testing.T) {
	t.Parallel()

	reg := newObserverRegistryFixture()

	_, err := InstallObserver(reg, &testObserver{}, "NotRegistered", "")
	require.ErrorIs(t, err, ErrNoFactory)
}

// TestObserverRegistryLookupAfterGC verifies that once the application
// drops its only strong reference to an installed observer and GC runs,
// Lookup reports it gone.
func TestObserverRegistryLookupAfterGC(t *testing.T) {
	reg := newObserverRegistryFixture()

	var identity ActorIdentity

	func() {
		obs := &testObserver{id: 42}
		id, err := InstallObserver(reg, obs, "", "")
		require.NoError(t, err)
		identity = id

		_, ok := reg.Lookup(identity)
		require.True(t, ok, "observer should be reachable while referenced")
	}()

	// Force several GC cycles: weak.Pointer clearing is tied to the GC,
	// not to this function's own deallocation.
	for i := 0; i < 5; i++ {
		runtime.GC()
	}

	_, ok := reg.Lookup(identity)
	require.False(t, ok, "observer should be gone once uncollected references vanish")
}
