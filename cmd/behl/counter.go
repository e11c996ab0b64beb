package main

import (
	"github.com/behl-lang/behl-sub001/internal/asm"
	"github.com/behl-lang/behl-sub001/internal/proto"
)

// buildCounterDemo assembles the closure-capture scenario spec.md §8 names
// explicitly: make_counter() returns a fresh closure per call, each
// instance capturing its own independent `count` upvalue.
//
//	function make_counter()
//	    local count = 0
//	    return function()
//	        count = count + 1
//	        return count
//	    end
//	end
//	local c1, c2 = make_counter(), make_counter()
//	c1(); c1(); c2()
//	return c1(), c2()   -- 3, 2
func buildCounterDemo() *proto.Prototype {
	inc := asm.New("<demo:counter>", "increment", 0, false)
	inc.IncUpval(0)
	inc.Reserve(1)
	inc.GetUpval(1, 0)
	inc.Return(1, 1)

	makeCounter := asm.New("<demo:counter>", "make_counter", 0, false)
	makeCounter.Reserve(2)
	makeCounter.LoadInt(1, 0) // local count = 0
	incIdx := makeCounter.AddProto(inc)
	makeCounter.AddUpval("count", true, 1)
	makeCounter.Closure(2, incIdx)
	makeCounter.Return(2, 1)

	// main's registers: 1 = make_counter, 2 = c1, 3 = c2, 4..6 = call
	// scratch. A CALL instruction overwrites its own function register with
	// the result, so every call against c1/c2 goes through a scratch copy
	// to keep the closures themselves alive across repeated calls.
	main := asm.New("<demo:counter>", "main", 0, false)
	main.Reserve(6)
	mcIdx := main.AddProto(makeCounter)
	main.Closure(1, mcIdx)

	main.Move(2, 1)
	main.Call(2, 0, 1) // c1 = make_counter()
	main.Move(3, 1)
	main.Call(3, 0, 1) // c2 = make_counter()

	main.Move(4, 2)
	main.Call(4, 0, 1) // c1() -> 1
	main.Move(4, 2)
	main.Call(4, 0, 1) // c1() -> 2
	main.Move(4, 3)
	main.Call(4, 0, 1) // c2() -> 1

	main.Move(5, 2)
	main.Call(5, 0, 1) // c1() -> 3
	main.Move(6, 3)
	main.Call(6, 0, 1) // c2() -> 2

	main.Return(5, 2) // 3, 2
	return main.Build()
}
