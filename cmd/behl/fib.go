package main

import (
	"github.com/behl-lang/behl-sub001/internal/asm"
	"github.com/behl-lang/behl-sub001/internal/proto"
)

// buildFibDemo assembles naive recursive fibonacci, exercising comparison
// (Lt), conditional branching (Test/Jmp), global function lookup, and
// non-tail recursive calls:
//
//	function fib(n)
//	    if n < 2 then return n end
//	    return fib(n - 1) + fib(n - 2)
//	end
//	return fib(10)  -- 55
func buildFibDemo() *proto.Prototype {
	fib := asm.New("<demo:fib>", "fib", 1, false)
	fib.Reserve(10)
	kFib := fib.KStr("fib")

	fib.LoadInt(3, 2)
	fib.Lt(2, 1, 3, false) // reg2 = n < 2

	fib.Test(2, false)
	jmpElsePC := fib.Jmp(0)
	fib.Return(1, 1) // then: return n

	elseLabel := fib.Here()
	fib.Patch(jmpElsePC, elseLabel)

	fib.LoadInt(9, 1)
	fib.Sub(5, 1, 9)     // reg5 = n - 1
	fib.GetGlobal(6, kFib)
	fib.Move(7, 5)
	fib.Call(6, 1, 1) // reg6 = fib(n-1)

	fib.Sub(5, 1, 3) // reg5 = n - 2
	fib.GetGlobal(8, kFib)
	fib.Move(9, 5)
	fib.Call(8, 1, 1) // reg8 = fib(n-2)

	fib.Add(10, 6, 8)
	fib.Return(10, 1)

	main := asm.New("<demo:fib>", "main", 0, false)
	main.Reserve(2)
	kFibMain := main.KStr("fib")
	fibIdx := main.AddProto(fib)
	main.Closure(1, fibIdx)
	main.SetGlobal(1, kFibMain)
	main.LoadInt(2, 10)
	main.Call(1, 1, 1) // reg1 = fib(10)
	main.Return(1, 1)

	return main.Build()
}
