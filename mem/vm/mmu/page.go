package mmu

// A Page is one physical frame. Its buffer is allocated once and never
// resized. The owner of a page is not stored here; it is derived from the
// MMU's allocation registry.
type Page struct {
	Data        []byte
	BaseAddress uint64
}

func newPage(base, size uint64) Page {
	return Page{
		Data:        make([]byte, size),
		BaseAddress: base,
	}
}

// Contains tells if the address falls in the page.
func (p *Page) Contains(addr uint64) bool {
	return addr >= p.BaseAddress && addr-p.BaseAddress < uint64(len(p.Data))
}

// End is the first address after the page.
func (p *Page) End() uint64 {
	return p.BaseAddress + uint64(len(p.Data))
}

func (p *Page) read(addr uint64) byte {
	return p.Data[addr-p.BaseAddress]
}

// write copies data from addr on, stopping at the end of the page.
func (p *Page) write(addr uint64, data []byte) int {
	return copy(p.Data[addr-p.BaseAddress:], data)
}

// Zero clears the page content.
func (p *Page) Zero() {
	clear(p.Data)
}
