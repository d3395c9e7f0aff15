package gas

import "tern/internal/sir"

// PathBound computes the maximal total cost along any path from the entry
// to a return, for an annotated function. The bound exists exactly when
// the block graph is loop-free; cyclic functions rely on withdraw_gas for
// dynamic accounting and report ok=false.
func PathBound(fn *sir.Func) (bound uint64, ok bool) {
	n := len(fn.Blocks)
	if n == 0 {
		return 0, true
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make([]uint8, n)
	memo := make([]uint64, n)
	acyclic := true

	var walk func(b int) uint64
	walk = func(b int) uint64 {
		switch state[b] {
		case inStack:
			acyclic = false
			return 0
		case done:
			return memo[b]
		}
		state[b] = inStack

		var own uint64
		var bestSucc uint64
		for si := range fn.Blocks[b].Stmts {
			st := &fn.Blocks[b].Stmts[si]
			own += st.Gas
			for _, br := range st.Branches {
				if int(br.Block) < n {
					if c := walk(int(br.Block)); c > bestSucc {
						bestSucc = c
					}
				}
			}
		}
		state[b] = done
		memo[b] = own + bestSucc
		return memo[b]
	}

	total := walk(int(fn.Entry))
	if !acyclic {
		return 0, false
	}
	return total, true
}
