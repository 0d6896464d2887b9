package main

// ===========================================================================
// WHAT'S GOING ON HERE
// ===========================================================================
//
// This file implements scalar reverse-mode automatic differentiation.
//
// Every number that takes part in a training forward pass is wrapped in a
// Value. Each arithmetic operation creates a NEW Value that remembers:
//   - its operands (the graph edges, used only for traversal)
//   - a closure that pushes the output's gradient back into the operands
//
// THE CHAIN RULE, ONE NODE AT A TIME:
//
//   out = a * b
//   ∂L/∂a += ∂L/∂out · b
//   ∂L/∂b += ∂L/∂out · a
//
// Gradients are ACCUMULATED (+=), never assigned. A Value used by several
// downstream operations (an embedding weight, a residual stream entry)
// receives one contribution from each consumer.
//
// Backward() sorts the reachable graph topologically (post-order DFS, each
// node visited once), seeds the root gradient with 1, and runs the closures
// from the root back towards the leaves.
//
// The operator set is deliberately tiny: add, mul, pow (by a constant), log,
// exp and relu. Subtraction and division are derived from those, so every
// gradient in the model is built from six well-tested closures.
//
// ===========================================================================

import (
	"fmt"
	"math"
)

// Value is a scalar node in the computation graph.
type Value struct {
	Data float64
	Grad float64

	op       string
	prev     []*Value
	backward func()
}

// NewValue creates a leaf node.
func NewValue(data float64) *Value {
	return &Value{Data: data}
}

// newResult creates an interior node and rejects non-finite results.
func newResult(data float64, op string, operands ...*Value) *Value {
	if math.IsNaN(data) || math.IsInf(data, 0) {
		operand := math.NaN()
		if len(operands) > 0 {
			operand = operands[0].Data
		}
		panic(&DomainError{Op: op, Operand: operand, Result: data})
	}
	return &Value{Data: data, op: op, prev: operands}
}

// Add returns v + other.
func (v *Value) Add(other *Value) *Value {
	out := newResult(v.Data+other.Data, "+", v, other)
	out.backward = func() {
		v.Grad += out.Grad
		other.Grad += out.Grad
	}
	return out
}

// Mul returns v * other.
func (v *Value) Mul(other *Value) *Value {
	out := newResult(v.Data*other.Data, "*", v, other)
	out.backward = func() {
		v.Grad += other.Data * out.Grad
		other.Grad += v.Data * out.Grad
	}
	return out
}

// Pow returns v raised to a constant exponent.
func (v *Value) Pow(exponent float64) *Value {
	out := newResult(math.Pow(v.Data, exponent), fmt.Sprintf("**%g", exponent), v)
	out.backward = func() {
		v.Grad += exponent * math.Pow(v.Data, exponent-1) * out.Grad
	}
	return out
}

// Log returns the natural logarithm of v. v must be strictly positive.
func (v *Value) Log() *Value {
	if v.Data <= 0 {
		panic(&DomainError{Op: "log", Operand: v.Data, Result: math.Log(v.Data)})
	}
	out := newResult(math.Log(v.Data), "log", v)
	out.backward = func() {
		v.Grad += (1 / v.Data) * out.Grad
	}
	return out
}

// Exp returns e^v.
func (v *Value) Exp() *Value {
	out := newResult(math.Exp(v.Data), "exp", v)
	out.backward = func() {
		v.Grad += out.Data * out.Grad
	}
	return out
}

// ReLU returns max(0, v).
func (v *Value) ReLU() *Value {
	data := v.Data
	if data < 0 {
		data = 0
	}
	out := newResult(data, "relu", v)
	out.backward = func() {
		if out.Data > 0 {
			v.Grad += out.Grad
		}
	}
	return out
}

// Neg returns -v, computed as v * -1.
func (v *Value) Neg() *Value { return v.Mul(NewValue(-1)) }

// Sub returns v - other, computed as v + (-other).
func (v *Value) Sub(other *Value) *Value { return v.Add(other.Neg()) }

// Div returns v / other, computed as v * other^-1.
func (v *Value) Div(other *Value) *Value { return v.Mul(other.Pow(-1)) }

// AddConst returns v + c where c is a fresh leaf.
func (v *Value) AddConst(c float64) *Value { return v.Add(NewValue(c)) }

// MulConst returns v * c where c is a fresh leaf.
func (v *Value) MulConst(c float64) *Value { return v.Mul(NewValue(c)) }

// Op returns the operation tag that produced v ("" for leaves).
func (v *Value) Op() string { return v.op }

func (v *Value) String() string {
	if v.op == "" {
		return fmt.Sprintf("Value(data=%g, grad=%g)", v.Data, v.Grad)
	}
	return fmt.Sprintf("Value(data=%g, grad=%g, op=%s)", v.Data, v.Grad, v.op)
}

// Backward computes ∂v/∂x for every node x reachable from v and accumulates
// it into x.Grad.
func (v *Value) Backward() {
	topo := topoSort(v)
	v.Grad = 1
	for i := len(topo) - 1; i >= 0; i-- {
		if topo[i].backward != nil {
			topo[i].backward()
		}
	}
}

// topoSort returns the nodes reachable from root in post-order: every node
// appears after all of its operands.
//
// Iterative rather than recursive: a mean loss over a full context is a chain
// several thousand nodes deep.
func topoSort(root *Value) []*Value {
	type frame struct {
		node *Value
		next int // index of the next operand to visit
	}

	var topo []*Value
	visited := map[*Value]bool{root: true}
	stack := []frame{{node: root}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.node.prev) {
			child := top.node.prev[top.next]
			top.next++
			if !visited[child] {
				visited[child] = true
				stack = append(stack, frame{node: child})
			}
			continue
		}
		topo = append(topo, top.node)
		stack = stack[:len(stack)-1]
	}

	return topo
}
