package geoparser

import (
	"context"
	"iter"
)

// Kind hints the classifier about the record a tag map belongs to.
type Kind uint8

const (
	KindPoint Kind = iota + 1
	KindWay
	KindRelation
)

func (k Kind) String() string {
	switch k {
	case KindPoint:
		return "point"
	case KindWay:
		return "way"
	case KindRelation:
		return "relation"
	}
	return "unknown"
}

type RawPoint struct {
	ID   int64
	Lat  float64
	Lon  float64
	Tags map[string]string
}

type RawWay struct {
	ID      int64
	Tags    map[string]string
	NodeIDs []int64
}

// Closed reports whether the way starts and ends on the same point.
func (w RawWay) Closed() bool {
	return len(w.NodeIDs) >= 4 && w.NodeIDs[0] == w.NodeIDs[len(w.NodeIDs)-1]
}

type MemberType uint8

const (
	MemberNode MemberType = iota + 1
	MemberWay
	MemberRelation
)

type Member struct {
	Type MemberType
	Ref  int64
	Role string
}

type RawRelation struct {
	ID      int64
	Tags    map[string]string
	Members []Member
}

// Source provides resettable streams of raw records. Every call starts a new
// pass from the beginning of the dataset, which is what allows the resolver
// to walk ways twice. A stream stops at the first error it yields.
type Source interface {
	Points(ctx context.Context) iter.Seq2[RawPoint, error]
	Ways(ctx context.Context) iter.Seq2[RawWay, error]
	Relations(ctx context.Context) iter.Seq2[RawRelation, error]
}

// MemorySource is a Source over in-memory slices.
type MemorySource struct {
	PointList    []RawPoint
	WayList      []RawWay
	RelationList []RawRelation
}

var _ Source = (*MemorySource)(nil)

func (s *MemorySource) Points(ctx context.Context) iter.Seq2[RawPoint, error] {
	return sliceSeq(ctx, s.PointList)
}

func (s *MemorySource) Ways(ctx context.Context) iter.Seq2[RawWay, error] {
	return sliceSeq(ctx, s.WayList)
}

func (s *MemorySource) Relations(ctx context.Context) iter.Seq2[RawRelation, error] {
	return sliceSeq(ctx, s.RelationList)
}

func sliceSeq[T any](ctx context.Context, items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}
