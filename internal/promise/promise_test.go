package promise

import (
	"errors"
	"testing"
)

// recorder collects every value a continuation observes.
type recorder struct {
	calls []any
}

func (r *recorder) callback(v any) (any, error) {
	r.calls = append(r.calls, v)
	return v, nil
}

func neverCalled(t *testing.T) Callback {
	return func(v any) (any, error) {
		t.Errorf("continuation should not have been called (value %v)", v)
		return nil, nil
	}
}

func (r *recorder) assertCalledOnceWith(t *testing.T, want any) {
	t.Helper()
	if len(r.calls) != 1 {
		t.Fatalf("continuation called %d times, want 1", len(r.calls))
	}
	if r.calls[0] != want {
		t.Errorf("continuation received %v, want %v", r.calls[0], want)
	}
}

func TestResolveThenAttachAfter(t *testing.T) {
	var rec recorder

	p := New()
	if err := p.Resolve("foo"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	p.Then(rec.callback, neverCalled(t))

	rec.assertCalledOnceWith(t, "foo")
}

func TestResolveThenAttachBefore(t *testing.T) {
	var rec recorder

	p := New()
	p.Then(rec.callback, neverCalled(t))
	if err := p.Resolve("foo"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	rec.assertCalledOnceWith(t, "foo")
}

func TestResolveTwiceIsAnError(t *testing.T) {
	var rec recorder

	p := New()
	if err := p.Resolve("foo"); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if err := p.Resolve("bar"); !errors.Is(err, ErrAlreadySettled) {
		t.Errorf("second Resolve: got %v, want ErrAlreadySettled", err)
	}
	p.Then(rec.callback, neverCalled(t))

	rec.assertCalledOnceWith(t, "foo")
}

func TestRejectAfterResolveIsAnError(t *testing.T) {
	p := New()
	if err := p.Resolve("foo"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := p.Reject("bar"); !errors.Is(err, ErrAlreadySettled) {
		t.Errorf("Reject after Resolve: got %v, want ErrAlreadySettled", err)
	}
	if got := p.Status(); got != Resolved {
		t.Errorf("Status = %v, want Resolved", got)
	}
}

func TestReject(t *testing.T) {
	var rec recorder

	p := New()
	if err := p.Reject("boom"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	p.Then(neverCalled(t), rec.callback)

	rec.assertCalledOnceWith(t, "boom")
}

func TestRejectAttachBefore(t *testing.T) {
	var rec recorder

	p := New()
	p.Then(neverCalled(t), rec.callback)
	if err := p.Reject("boom"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	rec.assertCalledOnceWith(t, "boom")
}

func TestSuccessPropagatesThroughNilHandler(t *testing.T) {
	var rec recorder

	p := New()
	_ = p.Resolve("foo")
	p.Then(nil, neverCalled(t)).Then(rec.callback, neverCalled(t))

	rec.assertCalledOnceWith(t, "foo")
}

func TestErrorPropagatesThroughMissingHandler(t *testing.T) {
	var rec recorder

	p := New()
	_ = p.Reject("boom")
	p.Then(neverCalled(t), nil).Catch(rec.callback)

	rec.assertCalledOnceWith(t, "boom")
}

func TestSuccessChaining(t *testing.T) {
	var rec recorder

	p := New()
	_ = p.Resolve("foo")
	p.Then(func(v any) (any, error) {
		return v.(string) + "bar", nil
	}, neverCalled(t)).Then(rec.callback, neverCalled(t))

	rec.assertCalledOnceWith(t, "foobar")
}

func TestChainingObservesComposition(t *testing.T) {
	// p.Then(f).Then(g) observes g(f(x)) for pure f and g.
	var rec recorder
	f := func(v any) (any, error) { return v.(int) + 1, nil }
	g := func(v any) (any, error) { return v.(int) * 10, nil }

	p := New()
	p.Then(f, nil).Then(g, nil).Then(rec.callback, neverCalled(t))
	_ = p.Resolve(4)

	rec.assertCalledOnceWith(t, 50)
}

func TestCallbackErrorRejectsDownstream(t *testing.T) {
	var rec recorder
	boom := errors.New("boom")

	p := New()
	_ = p.Resolve("foo")
	p.Then(func(v any) (any, error) {
		return nil, boom
	}, neverCalled(t)).Then(neverCalled(t), rec.callback)

	rec.assertCalledOnceWith(t, boom)
}

func TestErrorHandlerRecoversChain(t *testing.T) {
	var rec recorder

	p := New()
	_ = p.Reject("boom")
	p.Catch(func(v any) (any, error) {
		return "recovered", nil
	}).Then(rec.callback, neverCalled(t))

	rec.assertCalledOnceWith(t, "recovered")
}

func TestReturnedPromiseIsFlattened(t *testing.T) {
	var rec recorder
	inner := New()

	p := New()
	_ = p.Resolve("ignored")
	p.Then(func(v any) (any, error) {
		return inner, nil
	}, neverCalled(t)).Then(rec.callback, neverCalled(t))

	if len(rec.calls) != 0 {
		t.Fatalf("downstream settled before inner promise: %v", rec.calls)
	}
	_ = inner.Resolve("late")

	rec.assertCalledOnceWith(t, "late")
}

func TestContinuationsRunInRegistrationOrder(t *testing.T) {
	var order []int

	p := New()
	for i := range 5 {
		i := i
		p.Then(func(v any) (any, error) {
			order = append(order, i)
			return nil, nil
		}, nil)
	}
	_ = p.Resolve(nil)

	for i, got := range order {
		if got != i {
			t.Fatalf("continuation order = %v, want ascending", order)
		}
	}
	if len(order) != 5 {
		t.Fatalf("ran %d continuations, want 5", len(order))
	}
}

func TestWhenWrapsPlainValue(t *testing.T) {
	var rec recorder
	When("foo").Then(rec.callback, neverCalled(t))
	rec.assertCalledOnceWith(t, "foo")
}

func TestWhenPassesPromiseThrough(t *testing.T) {
	p := New()
	if When(p) != p {
		t.Error("When(promise) should return the same promise")
	}
}

func TestFailedWrapsReason(t *testing.T) {
	var rec recorder
	Failed("boom").Then(neverCalled(t), rec.callback)
	rec.assertCalledOnceWith(t, "boom")
}

func TestAllResolvesInInputOrder(t *testing.T) {
	p1, p2, p3 := New(), New(), New()

	var rec recorder
	All(p1, p2, p3).Then(rec.callback, neverCalled(t))

	// Settle out of order; results must follow input order.
	_ = p3.Resolve("c")
	_ = p1.Resolve("a")
	if len(rec.calls) != 0 {
		t.Fatal("All settled before every input resolved")
	}
	_ = p2.Resolve("b")

	if len(rec.calls) != 1 {
		t.Fatalf("All continuation called %d times, want 1", len(rec.calls))
	}
	got := rec.calls[0].([]any)
	want := []any{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("All result[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAllRejectsWithFirstError(t *testing.T) {
	p1, p2 := New(), New()

	var rec recorder
	All(p1, p2).Then(neverCalled(t), rec.callback)

	_ = p2.Reject("first failure")
	_ = p1.Resolve("too late")

	rec.assertCalledOnceWith(t, "first failure")
}

func TestAllEmptyInput(t *testing.T) {
	var rec recorder
	All().Then(rec.callback, neverCalled(t))
	if len(rec.calls) != 1 {
		t.Fatal("All() with no inputs should resolve immediately")
	}
}

func TestValue(t *testing.T) {
	p := New()
	if _, settled := p.Value(); settled {
		t.Error("open promise reported as settled")
	}
	_ = p.Resolve(42)
	v, settled := p.Value()
	if !settled || v != 42 {
		t.Errorf("Value = %v, %v; want 42, true", v, settled)
	}
}
