package ordering

import "github.com/google/uuid"

// Project は元の層の正規順 (canonical) を、IDの対応表 (元ID -> 先ID) を使って先の層へ写します。
// current は先の層の現在の並びで、対応の無いノードは現在の相対順のまま末尾に残します。
func Project(canonical []uuid.UUID, mapping map[uuid.UUID]uuid.UUID, current []uuid.UUID) []uuid.UUID {
	present := make(map[uuid.UUID]bool, len(current))
	for _, id := range current {
		present[id] = true
	}

	used := make(map[uuid.UUID]bool, len(current))
	out := make([]uuid.UUID, 0, len(current))
	for _, src := range canonical {
		dst, ok := mapping[src]
		if !ok || !present[dst] || used[dst] {
			continue
		}
		used[dst] = true
		out = append(out, dst)
	}
	for _, id := range current {
		if !used[id] {
			used[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Entry は先の層のノードと、その対応元 (Anchor) です。Anchor が nil ならアドホックです。
type Entry struct {
	ID     uuid.UUID
	Anchor *uuid.UUID
}

// MergeAdHoc は正規順に沿って対応元を持つノードを並べ直し、アドホックなノードの連続区間を
// 元の位置に近いところへ差し戻します。
//
// 区間ごとに、直前側へ遡って最初に見つかった対応付きノードの直後へ挿入します。
// 見つからなければ直後側へ進んで最初の対応付きノードの直前へ、それも無ければ末尾へ置きます。
func MergeAdHoc(canonical []uuid.UUID, current []Entry) []uuid.UUID {
	inCanonical := make(map[uuid.UUID]bool, len(canonical))
	for _, id := range canonical {
		inCanonical[id] = true
	}

	srcToDst := make(map[uuid.UUID]uuid.UUID)
	linked := make([]bool, len(current))
	for i, e := range current {
		if e.Anchor == nil || !inCanonical[*e.Anchor] {
			continue
		}
		if _, dup := srcToDst[*e.Anchor]; dup {
			// 同じ対応元を持つ2つ目以降はアドホック扱いで浮かせる
			continue
		}
		srcToDst[*e.Anchor] = e.ID
		linked[i] = true
	}

	after := make(map[uuid.UUID][]uuid.UUID)
	before := make(map[uuid.UUID][]uuid.UUID)
	var tail []uuid.UUID

	for i := 0; i < len(current); {
		if linked[i] {
			i++
			continue
		}
		j := i
		var run []uuid.UUID
		for j < len(current) && !linked[j] {
			run = append(run, current[j].ID)
			j++
		}

		placed := false
		for k := i - 1; k >= 0; k-- {
			if linked[k] {
				after[current[k].ID] = append(after[current[k].ID], run...)
				placed = true
				break
			}
		}
		if !placed {
			for k := j; k < len(current); k++ {
				if linked[k] {
					before[current[k].ID] = append(before[current[k].ID], run...)
					placed = true
					break
				}
			}
		}
		if !placed {
			tail = append(tail, run...)
		}
		i = j
	}

	out := make([]uuid.UUID, 0, len(current))
	for _, src := range canonical {
		dst, ok := srcToDst[src]
		if !ok {
			continue
		}
		out = append(out, before[dst]...)
		out = append(out, dst)
		out = append(out, after[dst]...)
	}
	out = append(out, tail...)
	return out
}
