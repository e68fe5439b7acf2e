package rv64

// Zicsr: the CSR read/modify/write instructions. The "skip" rules
// below follow the privileged spec precisely: CSRRW skips the read
// when rd==x0, CSRRS/CSRRC skip the write when rs1 (or zimm) is zero.

func csrAddr(raw uint32) uint16 { return uint16(raw >> 20) }

func init() {
	addInsn(maskOpF3(), matchOpF3(opSystem, 1), "csrrw", execCSRRW(false))
	addInsn(maskOpF3(), matchOpF3(opSystem, 2), "csrrs", execCSRRS(false))
	addInsn(maskOpF3(), matchOpF3(opSystem, 3), "csrrc", execCSRRC(false))
	addInsn(maskOpF3(), matchOpF3(opSystem, 5), "csrrwi", execCSRRW(true))
	addInsn(maskOpF3(), matchOpF3(opSystem, 6), "csrrsi", execCSRRS(true))
	addInsn(maskOpF3(), matchOpF3(opSystem, 7), "csrrci", execCSRRC(true))
}

func csrOperand(raw uint32, h *Hart, imm bool) uint64 {
	if imm {
		return uint64(rs1(raw))
	}
	return h.GetReg(rs1(raw))
}

func execCSRRW(imm bool) handlerFunc {
	return func(h *Hart, raw uint32) error {
		csr := csrAddr(raw)
		val := csrOperand(raw, h, imm)
		dest := rd(raw)
		if dest != 0 {
			old, err := h.csrRead(csr)
			if err != nil {
				return err
			}
			if err := h.csrWrite(csr, val); err != nil {
				return err
			}
			h.SetReg(dest, old)
		} else if err := h.csrWrite(csr, val); err != nil {
			return err
		}
		h.PC += 4
		return nil
	}
}

func execCSRRS(imm bool) handlerFunc {
	return func(h *Hart, raw uint32) error {
		csr := csrAddr(raw)
		old, err := h.csrRead(csr)
		if err != nil {
			return err
		}
		if rs1(raw) != 0 {
			if err := h.csrWrite(csr, old|csrOperand(raw, h, imm)); err != nil {
				return err
			}
		}
		h.SetReg(rd(raw), old)
		h.PC += 4
		return nil
	}
}

func execCSRRC(imm bool) handlerFunc {
	return func(h *Hart, raw uint32) error {
		csr := csrAddr(raw)
		old, err := h.csrRead(csr)
		if err != nil {
			return err
		}
		if rs1(raw) != 0 {
			if err := h.csrWrite(csr, old&^csrOperand(raw, h, imm)); err != nil {
				return err
			}
		}
		h.SetReg(rd(raw), old)
		h.PC += 4
		return nil
	}
}
