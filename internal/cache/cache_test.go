package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCache_Basic(t *testing.T) {
	c := New[int64, string]()
	defer c.Close()

	c.Set(1, "en")

	value, exists := c.Get(1)
	if !exists {
		t.Fatal("Expected key 1 to exist")
	}
	if value != "en" {
		t.Errorf("Expected 'en', got %v", value)
	}

	if _, exists = c.Get(2); exists {
		t.Error("Expected missing key to not exist")
	}
}

func TestCache_Overwrite(t *testing.T) {
	c := NewWithConfig[string, int](2, time.Hour, 0)
	defer c.Close()

	c.Set("a", 1)
	c.Set("a", 2)

	if c.Size() != 1 {
		t.Errorf("Expected size 1 after overwrite, got %d", c.Size())
	}
	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Expected overwritten value 2, got %d", v)
	}
}

func TestCache_Expiry(t *testing.T) {
	c := NewWithConfig[string, string](100, time.Minute, 0)
	defer c.Close()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.SetWithExpiry("expiring", "value", 50*time.Millisecond)

	if value, exists := c.Get("expiring"); !exists || value != "value" {
		t.Error("Expected item to exist immediately after setting")
	}

	now = now.Add(100 * time.Millisecond)

	if _, exists := c.Get("expiring"); exists {
		t.Error("Expected item to be expired")
	}
	if c.Size() != 0 {
		t.Errorf("Expected expired item to be removed on Get, size %d", c.Size())
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewWithConfig[string, string](3, time.Hour, 0)
	defer c.Close()

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Set("key3", "value3")

	// touch key1 so key2 becomes the oldest
	c.Get("key1")

	c.Set("key4", "value4")

	if c.Size() != 3 {
		t.Errorf("Expected size to remain 3 after eviction, got %d", c.Size())
	}

	tests := []struct {
		key  string
		want bool
	}{
		{"key1", true},
		{"key2", false},
		{"key3", true},
		{"key4", true},
	}
	for _, tt := range tests {
		if _, ok := c.Get(tt.key); ok != tt.want {
			t.Errorf("Get(%s) present = %v, want %v", tt.key, ok, tt.want)
		}
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	c := New[string, string]()
	defer c.Close()

	c.Set("key1", "value1")
	c.Set("key2", "value2")
	c.Delete("key1")

	if _, exists := c.Get("key1"); exists {
		t.Error("Expected deleted key to not exist")
	}

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("Expected size 0 after clear, got %d", c.Size())
	}
}

func TestCache_Stats(t *testing.T) {
	c := NewWithConfig[string, string](10, time.Hour, 0)
	defer c.Close()

	c.Set("live", "v")
	c.SetWithExpiry("dead", "v", -time.Second)

	stats := c.GetStats()
	if stats.Size != 2 || stats.MaxSize != 10 || stats.ExpiredItems != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.DefaultExpiry != time.Hour {
		t.Errorf("DefaultExpiry = %s, want 1h", stats.DefaultExpiry)
	}
}

func TestCache_Cleanup(t *testing.T) {
	c := NewWithConfig[string, string](100, time.Hour, 10*time.Millisecond)
	defer c.Close()

	c.SetWithExpiry("short", "v", time.Millisecond)
	c.Set("long", "v")

	deadline := time.Now().Add(time.Second)
	for c.Size() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if c.Size() != 1 {
		t.Errorf("Expected cleanup to leave 1 item, got %d", c.Size())
	}
}

func TestCache_CloseTwice(t *testing.T) {
	c := New[string, string]()
	c.Close()
	c.Close()
}

func TestCache_Concurrent(t *testing.T) {
	c := NewWithConfig[string, int](50, time.Hour, time.Millisecond)
	defer c.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%80)
				c.Set(key, i)
				c.Get(key)
				if i%10 == 0 {
					c.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Size() > 50 {
		t.Errorf("Size %d exceeds max 50", c.Size())
	}
}

func BenchmarkCache_SetGet(b *testing.B) {
	c := NewWithConfig[int64, int](1000, time.Hour, 0)
	defer c.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := int64(i % 2000)
		c.Set(key, i)
		c.Get(key)
	}
}
