package user

import "kestrel/kernel/cpu/asm"

// Register names as they read in assembly listings.
const (
	zero = asm.Zero
	ra   = asm.RA
	sp   = asm.SP
	t0   = asm.T0
	t1   = asm.T1
	t2   = asm.T2
	t3   = asm.T3
	t4   = asm.T4
	s0   = asm.S0
	s1   = asm.S1
	s2   = asm.S2
	s3   = asm.S3
	s4   = asm.S4
	a0   = asm.A0
	a1   = asm.A1
	a2   = asm.A2
	a3   = asm.A3
	a7   = asm.A7
)
