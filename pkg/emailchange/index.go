package emailchange

import "time"

// requestIndex keeps requests keyed by selector with secondary indexes on the
// account and the old email selector. Callers hold the lock.
type requestIndex struct {
	bySelector    map[string]*EmailChangeRequest
	byAccount     map[string]string
	byOldSelector map[string]string
}

func newRequestIndex() *requestIndex {
	return &requestIndex{
		bySelector:    make(map[string]*EmailChangeRequest),
		byAccount:     make(map[string]string),
		byOldSelector: make(map[string]string),
	}
}

func (ix *requestIndex) get(selector string) (*EmailChangeRequest, bool) {
	request, ok := ix.bySelector[selector]
	if !ok {
		return nil, false
	}
	return request.clone(), true
}

func (ix *requestIndex) getByAccount(accountIdentifier string) (*EmailChangeRequest, bool) {
	selector, ok := ix.byAccount[accountIdentifier]
	if !ok {
		return nil, false
	}
	return ix.get(selector)
}

func (ix *requestIndex) getByOldSelector(oldSelector string) (*EmailChangeRequest, bool) {
	selector, ok := ix.byOldSelector[oldSelector]
	if !ok {
		return nil, false
	}
	return ix.get(selector)
}

// put stores a copy of the request. A different request already indexed for the
// same account is replaced.
func (ix *requestIndex) put(request *EmailChangeRequest) {
	if previous, ok := ix.byAccount[request.AccountIdentifier]; ok && previous != request.Selector {
		ix.remove(previous)
	}
	if current, ok := ix.bySelector[request.Selector]; ok && current.OldEmailSelector != "" {
		delete(ix.byOldSelector, current.OldEmailSelector)
	}

	ix.bySelector[request.Selector] = request.clone()
	ix.byAccount[request.AccountIdentifier] = request.Selector
	if request.OldEmailSelector != "" {
		ix.byOldSelector[request.OldEmailSelector] = request.Selector
	}
}

func (ix *requestIndex) remove(selector string) bool {
	request, ok := ix.bySelector[selector]
	if !ok {
		return false
	}
	delete(ix.bySelector, selector)
	if ix.byAccount[request.AccountIdentifier] == selector {
		delete(ix.byAccount, request.AccountIdentifier)
	}
	if request.OldEmailSelector != "" {
		delete(ix.byOldSelector, request.OldEmailSelector)
	}
	return true
}

func (ix *requestIndex) expiredAt(cutoff time.Time) []string {
	var selectors []string
	for selector, request := range ix.bySelector {
		if request.IsExpired(cutoff) {
			selectors = append(selectors, selector)
		}
	}
	return selectors
}

func (ix *requestIndex) all() []*EmailChangeRequest {
	requests := make([]*EmailChangeRequest, 0, len(ix.bySelector))
	for _, request := range ix.bySelector {
		requests = append(requests, request)
	}
	return requests
}
