package chat

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestRegistry_FindOrCreateReturnsSameRoom(t *testing.T) {
	reg := NewRegistry(10)

	a := reg.FindOrCreate("lobby")
	b := reg.FindOrCreate("lobby")
	if a != b {
		t.Error("FindOrCreate returned different rooms for the same name")
	}
	if a.Name() != "lobby" {
		t.Errorf("Name() = %q, want lobby", a.Name())
	}

	c := reg.FindOrCreate("other")
	if c == a {
		t.Error("FindOrCreate returned the same room for different names")
	}
}

func TestRegistry_ConcurrentFindOrCreate(t *testing.T) {
	reg := NewRegistry(10)

	const callers = 64
	rooms := make([]*Room, callers)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			rooms[i] = reg.FindOrCreate("X")
		}(i)
	}
	close(start)
	wg.Wait()

	for i, room := range rooms {
		if room != rooms[0] {
			t.Fatalf("caller %d got a different room instance", i)
		}
	}
	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
}

func TestRegistry_RoomsAndStats(t *testing.T) {
	reg := NewRegistry(10)
	reg.FindOrCreate("b")
	lobby := reg.FindOrCreate("a")

	sub := lobby.Subscribe()
	defer sub.Close()
	lobby.Post("hi")

	if got, want := reg.Rooms(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Rooms() = %v, want %v", got, want)
	}

	want := []RoomStats{
		{Name: "a", Subscribers: 1, Published: 1},
		{Name: "b", Subscribers: 0, Published: 0},
	}
	if got := reg.Stats(); !reflect.DeepEqual(got, want) {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
}

func TestRegistry_CloseEndsSubscribers(t *testing.T) {
	reg := NewRegistry(10)
	sub := reg.FindOrCreate("lobby").Subscribe()
	defer sub.Close()

	reg.Close()

	if _, err := nextWithin(t, sub, time.Second); !errors.Is(err, ErrClosed) {
		t.Errorf("Next() error = %v, want ErrClosed", err)
	}

	late := reg.FindOrCreate("late").Subscribe()
	defer late.Close()
	if _, err := nextWithin(t, late, time.Second); !errors.Is(err, ErrClosed) {
		t.Errorf("Next() on room created after Close error = %v, want ErrClosed", err)
	}
}
