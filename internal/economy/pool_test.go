package economy

import (
	"sync"
	"testing"
)

func TestAddClampsToCapacity(t *testing.T) {
	p := NewPool(50)
	if !p.Add(Wood, 30) {
		t.Fatalf("add failed")
	}
	if got := p.Deposit(Wood, 40); got != 20 {
		t.Fatalf("deposit accepted %v, want 20", got)
	}
	if p.Add(Wood, 1) {
		t.Fatalf("add into a full store must report false")
	}
	p.AddCapacity(Wood, 25)
	if got := p.Space(Wood); got != 25 {
		t.Fatalf("space = %v, want 25", got)
	}
	if p.Add(Wood, -3) {
		t.Fatalf("negative add must fail")
	}
}

func TestUncappedResource(t *testing.T) {
	p := NewPool(10, Population)
	p.Add(Population, 1000)
	if got := p.Get(Population); got != 1000 {
		t.Fatalf("population = %v, want 1000", got)
	}
}

func TestConsume(t *testing.T) {
	p := NewPool(100)
	p.Add(Berries, 5)
	if p.Consume(Berries, 6, false) {
		t.Fatalf("consume beyond stock must fail")
	}
	if p.Get(Berries) != 5 {
		t.Fatalf("failed consume changed stock")
	}
	if !p.Consume(Berries, 6, true) || p.Get(Berries) != -1 {
		t.Fatalf("allowNegative consume should go to -1, got %v", p.Get(Berries))
	}
	if got := p.Take(Berries, 3); got != 0 {
		t.Fatalf("take from negative stock returned %v", got)
	}
}

func TestPayIsAllOrNothing(t *testing.T) {
	p := NewPool(100)
	p.Add(Wood, 50)
	p.Add(Stone, 5)
	cost := map[string]float64{Wood: 20, Stone: 10}
	if p.CanAfford(cost) || p.Pay(cost) {
		t.Fatalf("cost should be unaffordable")
	}
	if p.Get(Wood) != 50 || p.Get(Stone) != 5 {
		t.Fatalf("failed pay changed stock")
	}
	hut := map[string]float64{Wood: 20}
	if !p.Pay(hut) || p.Get(Wood) != 30 {
		t.Fatalf("wood = %v after paying 20 from 50", p.Get(Wood))
	}
}

func TestConcurrentDepositsNoLostUpdates(t *testing.T) {
	p := NewPool(1e9)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Add(Wood, 1)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Add(Stone, 2)
			}
		}()
	}
	wg.Wait()
	if p.Get(Wood) != 5000 || p.Get(Stone) != 10000 {
		t.Fatalf("lost updates: wood=%v stone=%v", p.Get(Wood), p.Get(Stone))
	}
}

func TestWealth(t *testing.T) {
	got := Wealth(map[string]float64{Wood: 10, Tools: 2})
	if got != 30 {
		t.Fatalf("wealth = %v, want 30", got)
	}
}
