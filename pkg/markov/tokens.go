package markov

import "strconv"

// linearScanLimit is the successor list length above which a lookup index is built.
const linearScanLimit = 16

// ChainRow is a possible successor of a context: the row id and how often it
// was observed after that context.
type ChainRow struct {
	Id   int
	Freq int
}

// successors keeps the observed successors of one context in first-insertion
// order, which is also the order the weighted draw walks them in.
type successors struct {
	rows  []ChainRow
	index map[int]int // row id -> position in rows, built once rows grows past linearScanLimit
	total int
}

func (s *successors) add(id, freq int) {
	s.total += freq
	if pos, ok := s.find(id); ok {
		s.rows[pos].Freq += freq
		return
	}
	s.rows = append(s.rows, ChainRow{Id: id, Freq: freq})
	if s.index != nil {
		s.index[id] = len(s.rows) - 1
	} else if len(s.rows) > linearScanLimit {
		s.index = make(map[int]int, len(s.rows)*2)
		for i, cr := range s.rows {
			s.index[cr.Id] = i
		}
	}
}

func (s *successors) find(id int) (int, bool) {
	if s.index != nil {
		pos, ok := s.index[id]
		return pos, ok
	}
	for i, cr := range s.rows {
		if cr.Id == id {
			return i, true
		}
	}
	return 0, false
}

// counts is a context -> successors table together with the pool of distinct
// real rows that have appeared as a successor, in first-seen order.
type counts struct {
	chains map[string]*successors
	pool   []int
	inPool map[int]struct{}
}

func newCounts() *counts {
	return &counts{
		chains: make(map[string]*successors),
		inPool: make(map[int]struct{}),
	}
}

func (c *counts) count(prefixKey string, next, freq int) {
	s, ok := c.chains[prefixKey]
	if !ok {
		s = &successors{}
		c.chains[prefixKey] = s
	}
	s.add(next, freq)
}

func (c *counts) remember(id int) {
	if id < firstRowID {
		return
	}
	if _, ok := c.inPool[id]; ok {
		return
	}
	c.inPool[id] = struct{}{}
	c.pool = append(c.pool, id)
}

// merge adds every count of o into c. Merging tables built from consecutive
// parts of a pass, in order, gives the same table as counting the pass at once.
func (c *counts) merge(o *counts) {
	for key, s := range o.chains {
		for _, cr := range s.rows {
			c.count(key, cr.Id, cr.Freq)
		}
	}
	for _, id := range o.pool {
		c.remember(id)
	}
}

// appendPrefixKey encodes a context as space separated ids.
func appendPrefixKey(keyBuf []byte, prefix []int) []byte {
	for j, id := range prefix {
		if j > 0 {
			keyBuf = append(keyBuf, ' ')
		}
		keyBuf = strconv.AppendInt(keyBuf, int64(id), 10)
	}
	return keyBuf
}

// NextRows returns every recorded successor of prefix together with the sum of
// their frequencies. The prefix must hold exactly Order ids, using SOCRowID for
// padding. An unseen prefix returns a nil slice and a total of 0. The returned
// slice is owned by the model and must not be modified.
func (m *Model) NextRows(prefix []int) ([]ChainRow, int) {
	return m.next(appendPrefixKey(nil, prefix))
}

func (m *Model) next(prefixKey []byte) ([]ChainRow, int) {
	s, ok := m.counts.chains[string(prefixKey)]
	if !ok {
		return nil, 0
	}
	return s.rows, s.total
}
