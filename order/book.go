package order

import "sync"

// Record 一笔订单的提交结果。
type Record struct {
	Intent  Intent
	OrderID string
	Err     error
}

// Book 记录本次会话提交过的订单及结果，供 "N of M" 汇总与查询。
type Book struct {
	mu      sync.RWMutex
	records []Record
}

func NewBook() *Book {
	return &Book{}
}

func (b *Book) Append(rec Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, rec)
}

// List 返回全部记录（拷贝）。
func (b *Book) List() []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res := make([]Record, len(b.records))
	copy(res, b.records)
	return res
}

// Counts 返回成功/失败的数量。
func (b *Book) Counts() (placed, failed int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, rec := range b.records {
		if rec.Err != nil {
			failed++
		} else {
			placed++
		}
	}
	return placed, failed
}
