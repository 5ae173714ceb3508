package phoo

import "sync"

// wordSymbols interns every Word name for the life of the process, so that
// Words compare by id.
var wordSymbols symbols

type symbols struct {
	mu      sync.RWMutex
	strings []string
	symbols map[string]uint32
}

func (sym *symbols) string(id uint32) string {
	sym.mu.RLock()
	defer sym.mu.RUnlock()
	if i := int(id) - 1; i >= 0 && i < len(sym.strings) {
		return sym.strings[i]
	}
	return ""
}

func (sym *symbols) symbol(s string) uint32 {
	sym.mu.RLock()
	defer sym.mu.RUnlock()
	return sym.symbols[s]
}

func (sym *symbols) symbolicate(s string) uint32 {
	if id := sym.symbol(s); id != 0 {
		return id
	}
	sym.mu.Lock()
	defer sym.mu.Unlock()
	id, defined := sym.symbols[s]
	if !defined {
		if sym.symbols == nil {
			sym.symbols = make(map[string]uint32)
		}
		id = uint32(len(sym.strings)) + 1
		sym.strings = append(sym.strings, s)
		sym.symbols[s] = id
	}
	return id
}
