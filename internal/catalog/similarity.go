package catalog

// Ratio computes a sequence similarity ratio between two strings,
// following the classic longest-matching-block decomposition: the total
// number of matched characters M over the combined length T gives
// 2*M/T. Identical strings score 1.0, fully disjoint strings 0.0. The
// receipt-vs-catalog cutoff of 0.8 is calibrated against these
// semantics.
func Ratio(a, b string) float64 {
	ar := []rune(a)
	br := []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1.0
	}

	b2j := make(map[rune][]int, len(br))
	for j, r := range br {
		b2j[r] = append(b2j[r], j)
	}

	matched := 0
	type span struct{ alo, ahi, blo, bhi int }
	queue := []span{{0, len(ar), 0, len(br)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, size := findLongestMatch(ar, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if size == 0 {
			continue
		}
		matched += size
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+size < s.ahi && j+size < s.bhi {
			queue = append(queue, span{i + size, s.ahi, j + size, s.bhi})
		}
	}

	return 2.0 * float64(matched) / float64(total)
}

// findLongestMatch locates the longest block of runes common to
// a[alo:ahi] and b[blo:bhi], preferring the earliest such block.
func findLongestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		newJ2len := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newJ2len
	}
	return besti, bestj, bestsize
}
