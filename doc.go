// Package phoo implements a small concatenative language: a compiler that turns
// source text into program arrays, and an interpreter that runs those arrays
// against a work stack.
//
// # Values
//
// Everything that sits on a stack or inside a program is a Value: a Number, an
// arbitrary precision Integer (written 12n), a Boolean, a Text, a Word, an
// Array, a Native, a Record, or one of the Undefined and Null sentinels.
//
// Arrays are both data and code. An array met while running a program is
// called: a frame for it is pushed and its items are run in turn. To put an
// array on the stack instead, quote it:
//
// 	[ 1 2 + ]     /* runs, leaving 3 */
// 	' [ 1 2 + ]   /* leaves the array itself */
//
// Words are resolved when they run, not when they are compiled, so a word may
// be used before it is defined.
//
// # Definitions
//
// Each module has three namespaces: words, macros, and literal rules. Each name
// maps to a stack of definitions; defining a name again shadows the old
// definition, and forgetting it uncovers the old one again. Strict threads, the
// default, refuse to redefine a visible name until it is forgotten.
//
// 	to sq [ dup * ]
// 	3 sq          /* 9 */
//
// Control flow is not built into the interpreter. The primitives bracketed like
// ]done[ and ]cjump[ act on the frame of whoever called the word that uses them,
// and everything else, from if to sandbox, is defined on top of them in the
// prelude.
//
// # Compiling
//
// The compiler splits source on whitespace. A token naming a macro runs that
// macro, which may consume more of the source; the brackets, $ "text"
// literals, and /* comments */ are all macros. Other tokens are matched
// against the literal rules, which produce numbers, integers, runes like 'a'
// or <ESC>, and constants. Anything left is a word.
//
// # Modules
//
// A name like math:sqrt is looked up in the module math, which an import
// statement binds into the running module:
//
// 	import math       /* math:sqrt is now reachable */
// 	import* math      /* and so is plain sqrt */
//
// Modules are loaded on their first import by the interpreter's Loaders, see
// SourceLoader and NativeLoader.
//
// # Threads
//
// A Thread owns a work stack and a return stack. It runs one compile or execute
// at a time; natives that call back into their thread nest under the same hold.
// While a thread runs, other goroutines may Pause, Step, Resume, or Kill it; the
// thread acts on these requests at checkpoints taken before every step.
package phoo
