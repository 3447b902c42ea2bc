package crawler

// Frontier owns the discovered URLs: a FIFO of queued entries and the set of
// visited ones. A URL moves unseen -> queued -> visited exactly once.
//
// Frontier is not safe for concurrent use; the engine only touches it
// between batches.
type Frontier struct {
	domain  string
	queue   []string
	queued  map[string]struct{}
	visited map[string]struct{}
}

// NewFrontier returns an empty frontier scoped to domain.
func NewFrontier(domain string) *Frontier {
	return &Frontier{
		domain:  domain,
		queued:  make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}
}

// Seed queues the entry URL without applying the scope rule.
func (f *Frontier) Seed(rawURL string) bool {
	abs, err := ResolveURL(rawURL, "")
	if err != nil {
		return false
	}
	return f.push(abs)
}

// EnqueueIfInScope resolves rawURL against originURL and queues it when its
// host contains the target domain and it has not been queued or visited.
// Malformed URLs are dropped silently.
func (f *Frontier) EnqueueIfInScope(rawURL, originURL string) bool {
	abs, err := ResolveURL(rawURL, originURL)
	if err != nil {
		return false
	}
	if !HostContains(abs, f.domain) {
		return false
	}
	return f.push(abs)
}

func (f *Frontier) push(abs string) bool {
	if _, ok := f.visited[abs]; ok {
		return false
	}
	if _, ok := f.queued[abs]; ok {
		return false
	}
	f.queued[abs] = struct{}{}
	f.queue = append(f.queue, abs)
	return true
}

// DequeueBatch removes up to maxCount URLs in FIFO order and marks them
// visited before returning them.
func (f *Frontier) DequeueBatch(maxCount int) []string {
	if maxCount <= 0 || len(f.queue) == 0 {
		return nil
	}
	n := min(maxCount, len(f.queue))
	batch := make([]string, n)
	copy(batch, f.queue[:n])
	f.queue = f.queue[n:]
	for _, u := range batch {
		delete(f.queued, u)
		f.visited[u] = struct{}{}
	}
	return batch
}

// IsExhausted reports whether nothing is left to dequeue.
func (f *Frontier) IsExhausted() bool {
	return len(f.queue) == 0
}

// Pending returns the number of queued URLs.
func (f *Frontier) Pending() int {
	return len(f.queue)
}

// VisitedCount returns the number of URLs handed out so far.
func (f *Frontier) VisitedCount() int {
	return len(f.visited)
}

// Visited reports whether absURL has been dequeued.
func (f *Frontier) Visited(absURL string) bool {
	_, ok := f.visited[absURL]
	return ok
}
