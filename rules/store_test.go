package rules

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// TestRuleStoreInterfaceExists verifies both stores satisfy RuleStore
func TestRuleStoreInterfaceExists(t *testing.T) {
	var _ RuleStore = (*InMemoryRuleStore)(nil)
	var _ RuleStore = (*PostgresRuleStore)(nil)
}

// TestInMemoryRuleStoreAdd verifies basic Add and Get
func TestInMemoryRuleStoreAdd(t *testing.T) {
	store := NewInMemoryRuleStore()
	rule := testRule("test-1", CategoryCode, 1)

	if err := store.Add(rule); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	retrieved, err := store.Get("test-1")
	if err != nil {
		t.Fatalf("Get() failed after Add(): %v", err)
	}
	if retrieved.ID != rule.ID || retrieved.Name != rule.Name {
		t.Errorf("retrieved %s/%s, want %s/%s", retrieved.ID, retrieved.Name, rule.ID, rule.Name)
	}
	if retrieved.CreatedAt.IsZero() {
		t.Error("Add() should stamp CreatedAt")
	}
}

// TestInMemoryRuleStoreAddDuplicate verifies duplicate ids are rejected
func TestInMemoryRuleStoreAddDuplicate(t *testing.T) {
	store := NewInMemoryRuleStore()

	if err := store.Add(testRule("dup", CategoryCode, 1)); err != nil {
		t.Fatalf("first Add() should succeed: %v", err)
	}

	second := testRule("dup", CategoryCode, 2)
	second.Name = "Second"
	err := store.Add(second)
	if !errors.Is(err, ErrDuplicateRule) {
		t.Fatalf("expected ErrDuplicateRule, got %v", err)
	}

	stored, _ := store.Get("dup")
	if stored.Name == "Second" {
		t.Error("duplicate Add() should not overwrite the existing rule")
	}
}

// TestInMemoryRuleStoreGetNotFound verifies missing ids fail
func TestInMemoryRuleStoreGetNotFound(t *testing.T) {
	store := NewInMemoryRuleStore()

	if _, err := store.Get("missing"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("expected ErrRuleNotFound, got %v", err)
	}
}

// TestInMemoryRuleStoreReturnsCopies verifies callers can't mutate stored rules
func TestInMemoryRuleStoreReturnsCopies(t *testing.T) {
	store := NewInMemoryRuleStore()
	_ = store.Add(testRule("copy", CategoryCode, 1))

	got, _ := store.Get("copy")
	got.Name = "changed"
	got.Conditions[0].Value = StringValue("changed")

	again, _ := store.Get("copy")
	if again.Name == "changed" || again.Conditions[0].Value.String() == "changed" {
		t.Error("mutating a returned rule should not change the store")
	}
}

// TestInMemoryRuleStoreUpdate verifies Update keeps CreatedAt and bumps UpdatedAt
func TestInMemoryRuleStoreUpdate(t *testing.T) {
	store := NewInMemoryRuleStore()
	rule := testRule("upd", CategoryCode, 1)
	_ = store.Add(rule)
	created := rule.CreatedAt

	time.Sleep(2 * time.Millisecond)

	changed := rule.Clone()
	changed.Name = "Updated"
	changed.CreatedAt = time.Time{}
	if err := store.Update(changed); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}

	got, _ := store.Get("upd")
	if got.Name != "Updated" {
		t.Errorf("name = %q, want Updated", got.Name)
	}
	if !got.CreatedAt.Equal(created) {
		t.Error("Update() should keep CreatedAt")
	}
	if !got.UpdatedAt.After(created) {
		t.Error("Update() should bump UpdatedAt")
	}
}

// TestInMemoryRuleStoreUpdateNotFound verifies unknown ids fail
func TestInMemoryRuleStoreUpdateNotFound(t *testing.T) {
	store := NewInMemoryRuleStore()

	if err := store.Update(testRule("missing", CategoryCode, 1)); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("expected ErrRuleNotFound, got %v", err)
	}
}

// TestInMemoryRuleStoreListOrder verifies priority ordering, ties by insertion order
func TestInMemoryRuleStoreListOrder(t *testing.T) {
	store := NewInMemoryRuleStore()
	for _, r := range []*BusinessRule{
		testRule("late", CategoryCode, 30),
		testRule("first-10", CategoryCode, 10),
		testRule("second-10", CategoryCode, 10),
		testRule("early", CategoryCode, 1),
	} {
		_ = store.Add(r)
	}

	// updating must not move a rule within its priority
	first, _ := store.Get("first-10")
	_ = store.Update(first)

	list, _ := store.List()
	want := []string{"early", "first-10", "second-10", "late"}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("list[%d] = %s, want %s", i, list[i].ID, id)
		}
	}
}

// TestInMemoryRuleStoreListActive verifies inactive rules are filtered out
func TestInMemoryRuleStoreListActive(t *testing.T) {
	store := NewInMemoryRuleStore()
	active := testRule("on", CategoryCode, 1)
	inactive := testRule("off", CategoryCode, 2)
	inactive.IsActive = false
	_ = store.Add(active)
	_ = store.Add(inactive)

	list, _ := store.ListActive()
	if len(list) != 1 || list[0].ID != "on" {
		t.Errorf("ListActive() = %v, want only rule on", list)
	}

	all, _ := store.List()
	if len(all) != 2 {
		t.Errorf("List() should include inactive rules, got %d", len(all))
	}
}

// TestInMemoryRuleStoreListActiveEmpty verifies an empty store lists nothing
func TestInMemoryRuleStoreListActiveEmpty(t *testing.T) {
	store := NewInMemoryRuleStore()

	list, err := store.ListActive()
	if err != nil {
		t.Fatalf("ListActive() failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected no rules, got %d", len(list))
	}
}

// TestInMemoryRuleStoreDelete verifies Delete and its not-found error
func TestInMemoryRuleStoreDelete(t *testing.T) {
	store := NewInMemoryRuleStore()
	_ = store.Add(testRule("del", CategoryCode, 1))

	if err := store.Delete("del"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get("del"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("expected ErrRuleNotFound after Delete(), got %v", err)
	}
	if err := store.Delete("del"); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("second Delete() should fail with ErrRuleNotFound, got %v", err)
	}
}

// TestInMemoryRuleStoreConcurrentReadWrite verifies the store under concurrent access
func TestInMemoryRuleStoreConcurrentReadWrite(t *testing.T) {
	store := NewInMemoryRuleStore()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if err := store.Add(testRule(fmt.Sprintf("rule-%d", i), CategoryCode, i)); err != nil {
				t.Errorf("Add() failed: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := store.ListActive(); err != nil {
				t.Errorf("ListActive() failed: %v", err)
			}
		}()
	}
	wg.Wait()

	list, _ := store.List()
	if len(list) != 50 {
		t.Errorf("expected 50 rules, got %d", len(list))
	}
}
