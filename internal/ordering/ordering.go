// Package ordering は prev/next ポインタで表現された双方向リストの純粋なアルゴリズム群です。
// 永続化には依存せず、壊れたチェーン (循環、複数の先頭・末尾、宙に浮いた参照) でも
// 必ず全順序を返すことを保証します。
package ordering

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Node はチェーンに参加できるエンティティ
type Node interface {
	OrderKey() uuid.UUID
	Previous() *uuid.UUID
	Next() *uuid.UUID
	CreatedTime() time.Time
}

// Link はあるノードに書き込むべきポインタの組です。
type Link struct {
	ID       uuid.UUID
	Previous *uuid.UUID
	Next     *uuid.UUID
}

// ByCreation は作成日時順 (同時刻はID順) に並べたコピーを返します。
func ByCreation[T Node](nodes []T) []T {
	out := make([]T, len(nodes))
	copy(out, nodes)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].CreatedTime(), out[j].CreatedTime()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].OrderKey().String() < out[j].OrderKey().String()
	})
	return out
}

func indexOf[T Node](nodes []T) map[uuid.UUID]T {
	index := make(map[uuid.UUID]T, len(nodes))
	for _, n := range nodes {
		index[n.OrderKey()] = n
	}
	return index
}

// Sequence はチェーンを先頭から辿った順序を返します。
// 先頭は previous が nil (またはスコープ外を指す) ノードのうち最古のもの。
// 走査はノード数で打ち切り、訪問済み集合で循環を検出します。
// 全ノードを辿れなかった場合は部分結果を捨て、作成日時順を返します。
func Sequence[T Node](nodes []T) []T {
	if len(nodes) == 0 {
		return []T{}
	}
	index := indexOf(nodes)
	head, ok := findHead(nodes, index)
	if !ok {
		return ByCreation(nodes)
	}

	visited := make(map[uuid.UUID]bool, len(index))
	out := make([]T, 0, len(index))
	cur := head
	for steps := 0; steps < len(index); steps++ {
		id := cur.OrderKey()
		if visited[id] {
			break
		}
		visited[id] = true
		out = append(out, cur)

		next := cur.Next()
		if next == nil {
			break
		}
		nxt, found := index[*next]
		if !found {
			break
		}
		cur = nxt
	}

	if len(out) != len(nodes) {
		return ByCreation(nodes)
	}
	return out
}

func findHead[T Node](nodes []T, index map[uuid.UUID]T) (T, bool) {
	var candidates []T
	for _, n := range nodes {
		prev := n.Previous()
		if prev == nil {
			candidates = append(candidates, n)
			continue
		}
		if _, ok := index[*prev]; !ok {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		var zero T
		return zero, false
	}
	return ByCreation(candidates)[0], true
}

// Keys はノード列のIDを返します。
func Keys[T Node](nodes []T) []uuid.UUID {
	ids := make([]uuid.UUID, len(nodes))
	for i, n := range nodes {
		ids[i] = n.OrderKey()
	}
	return ids
}

// IsHealthy はスコープ内の可視ノードがちょうど1本のパスを成しているか判定します。
// 前後ポインタの対称性も確認します。
func IsHealthy[T Node](nodes []T) bool {
	if len(nodes) == 0 {
		return true
	}
	index := indexOf(nodes)
	if len(index) != len(nodes) {
		return false
	}

	heads := 0
	for _, n := range nodes {
		if p := n.Previous(); p == nil {
			heads++
		} else if _, ok := index[*p]; !ok {
			return false
		}
		if nx := n.Next(); nx != nil {
			if _, ok := index[*nx]; !ok {
				return false
			}
		}
	}
	if heads != 1 {
		return false
	}

	seq := Sequence(nodes)
	for i, n := range seq {
		wantPrev, wantNext := neighbours(Keys(seq), i)
		if !sameID(n.Previous(), wantPrev) || !sameID(n.Next(), wantNext) {
			return false
		}
	}
	return true
}

// Tail は追記先となる末尾ノードを返します。
// 正常なチェーンでは next=nil のノード、壊れている場合は作成日時が最も新しいノードになります。
func Tail[T Node](nodes []T) (T, bool) {
	seq := Sequence(nodes)
	if len(seq) == 0 {
		var zero T
		return zero, false
	}
	return seq[len(seq)-1], true
}

// RobustTail は誰の previous にも指されていないノード (構造上の末尾候補) のうち、
// previous を遡った長さが最も長いものを返します。断片が複数ある場合に最も完全な断片の末尾を選ぶためです。
func RobustTail[T Node](nodes []T) (T, bool) {
	var zero T
	if len(nodes) == 0 {
		return zero, false
	}
	index := indexOf(nodes)

	referenced := make(map[uuid.UUID]bool, len(nodes))
	for _, n := range nodes {
		if p := n.Previous(); p != nil {
			referenced[*p] = true
		}
	}

	var (
		best    T
		bestLen = -1
		found   bool
	)
	for _, n := range ByCreation(nodes) {
		if referenced[n.OrderKey()] {
			continue
		}
		length := backwardLength(n, index)
		// 同じ長さなら作成日時が新しい方 (ByCreation の後ろ側) を優先
		if length >= bestLen {
			best, bestLen, found = n, length, true
		}
	}
	if !found {
		byCreation := ByCreation(nodes)
		return byCreation[len(byCreation)-1], true
	}
	return best, true
}

func backwardLength[T Node](n T, index map[uuid.UUID]T) int {
	visited := map[uuid.UUID]bool{n.OrderKey(): true}
	length := 1
	cur := n
	for steps := 0; steps < len(index); steps++ {
		p := cur.Previous()
		if p == nil {
			break
		}
		prev, ok := index[*p]
		if !ok || visited[prev.OrderKey()] {
			break
		}
		visited[prev.OrderKey()] = true
		length++
		cur = prev
	}
	return length
}

// Move は id を取り除いてから target の位置に挿入した新しい並びを返します。
// target は [0, 取り除いた後の長さ] に丸められます。
func Move(ids []uuid.UUID, id uuid.UUID, target int) []uuid.UUID {
	rest := make([]uuid.UUID, 0, len(ids))
	for _, x := range ids {
		if x != id {
			rest = append(rest, x)
		}
	}
	if target < 0 {
		target = 0
	}
	if target > len(rest) {
		target = len(rest)
	}
	out := make([]uuid.UUID, 0, len(rest)+1)
	out = append(out, rest[:target]...)
	out = append(out, id)
	out = append(out, rest[target:]...)
	return out
}

// IndexOf は並びの中の id の位置を返します (無ければ -1)。
func IndexOf(ids []uuid.UUID, id uuid.UUID) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}

// Relink は並び順から全ノードのポインタを作り直します。
func Relink(ids []uuid.UUID) []Link {
	links := make([]Link, len(ids))
	for i, id := range ids {
		prev, next := neighbours(ids, i)
		links[i] = Link{ID: id, Previous: prev, Next: next}
	}
	return links
}

// Changes は Relink の結果のうち、現在のポインタと異なるものだけを返します。
// 同じ並びを2回書いても2回目は何も書かない (冪等) ためのものです。
func Changes[T Node](nodes []T, ids []uuid.UUID) []Link {
	index := indexOf(nodes)
	var out []Link
	for _, l := range Relink(ids) {
		n, ok := index[l.ID]
		if ok && sameID(n.Previous(), l.Previous) && sameID(n.Next(), l.Next) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func neighbours(ids []uuid.UUID, i int) (*uuid.UUID, *uuid.UUID) {
	var prev, next *uuid.UUID
	if i > 0 {
		p := ids[i-1]
		prev = &p
	}
	if i < len(ids)-1 {
		n := ids[i+1]
		next = &n
	}
	return prev, next
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
