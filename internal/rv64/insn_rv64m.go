package rv64

import "math/bits"

// RV64M: integer multiply/divide, including the architecturally
// mandated division-by-zero and signed-overflow special cases.

const mExtFunct7 = 0x01

func init() {
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 0, mExtFunct7), "mul", makeOp(func(a, b uint64) uint64 { return a * b }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 1, mExtFunct7), "mulh", makeOp(mulhSigned))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 2, mExtFunct7), "mulhsu", makeOp(mulhSignedUnsigned))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 3, mExtFunct7), "mulhu", makeOp(mulhUnsigned))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 4, mExtFunct7), "div", makeOp(divSigned))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 5, mExtFunct7), "divu", makeOp(divUnsigned))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 6, mExtFunct7), "rem", makeOp(remSigned))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp, 7, mExtFunct7), "remu", makeOp(remUnsigned))

	addInsn(maskOpF3F7(), matchOpF3F7(opOp32, 0, mExtFunct7), "mulw", makeOp32(func(a, b uint32) uint32 { return a * b }))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp32, 4, mExtFunct7), "divw", makeOp32(divSigned32))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp32, 5, mExtFunct7), "divuw", makeOp32(divUnsigned32))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp32, 6, mExtFunct7), "remw", makeOp32(remSigned32))
	addInsn(maskOpF3F7(), matchOpF3F7(opOp32, 7, mExtFunct7), "remuw", makeOp32(remUnsigned32))
}

func mulhUnsigned(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	return hi
}

func mulhSigned(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	if int64(a) < 0 {
		hi -= b
	}
	if int64(b) < 0 {
		hi -= a
	}
	return hi
}

func mulhSignedUnsigned(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	if int64(a) < 0 {
		hi -= b
	}
	return hi
}

func divSigned(a, b uint64) uint64 {
	sa, sb := int64(a), int64(b)
	if sb == 0 {
		return ^uint64(0)
	}
	if sa == -1<<63 && sb == -1 {
		return a
	}
	return uint64(sa / sb)
}

func divUnsigned(a, b uint64) uint64 {
	if b == 0 {
		return ^uint64(0)
	}
	return a / b
}

func remSigned(a, b uint64) uint64 {
	sa, sb := int64(a), int64(b)
	if sb == 0 {
		return a
	}
	if sa == -1<<63 && sb == -1 {
		return 0
	}
	return uint64(sa % sb)
}

func remUnsigned(a, b uint64) uint64 {
	if b == 0 {
		return a
	}
	return a % b
}

func divSigned32(a, b uint32) uint32 {
	sa, sb := int32(a), int32(b)
	if sb == 0 {
		return ^uint32(0)
	}
	if sa == -1<<31 && sb == -1 {
		return a
	}
	return uint32(sa / sb)
}

func divUnsigned32(a, b uint32) uint32 {
	if b == 0 {
		return ^uint32(0)
	}
	return a / b
}

func remSigned32(a, b uint32) uint32 {
	sa, sb := int32(a), int32(b)
	if sb == 0 {
		return a
	}
	if sa == -1<<31 && sb == -1 {
		return 0
	}
	return uint32(sa % sb)
}

func remUnsigned32(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return a % b
}
