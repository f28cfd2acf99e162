package jobs

import (
	"container/list"
	"sync"
)

// Store はジョブIDごとの進捗をメモリ上に保持します。
// 追跡件数が上限に達すると、登録順で最も古いIDから削除します。
// 参照や完了状態は削除順に影響しません。
type Store struct {
	mu       sync.Mutex
	capacity int
	progress map[string]int
	order    *list.List
	elements map[string]*list.Element
}

// NewStore は Store を作成します。capacity が 0 以下の場合は既定値を使います。
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultProgressCapacity
	}
	return &Store{
		capacity: capacity,
		progress: make(map[string]int),
		order:    list.New(),
		elements: make(map[string]*list.Element),
	}
}

// Init は進捗を 0 で登録し、登録順の末尾に追加します。
// 同じIDを再登録した場合は末尾へ移動します。
//
// 戻り値の undo は Init 前の状態に戻します。キューへの投入をあきらめたときに使います。
// 再登録だった場合は以前の進捗と位置を、押し出したIDがあればそれも復元します。
// Init 後に進捗が更新されていた場合は何もしません。
func (s *Store) Init(jobID string) (undo func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.progress[jobID]
	var next string
	if elem, ok := s.elements[jobID]; ok {
		if n := elem.Next(); n != nil {
			next = n.Value.(string)
		}
		s.order.MoveToBack(elem)
	} else {
		s.elements[jobID] = s.order.PushBack(jobID)
	}
	s.progress[jobID] = ProgressQueued

	var (
		evictedID       string
		evictedProgress int
	)
	if s.order.Len() >= s.capacity {
		evictedID = s.order.Front().Value.(string)
		evictedProgress = s.progress[evictedID]
		s.evictLocked(evictedID)
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if current, ok := s.progress[jobID]; !ok || current != ProgressQueued {
			return
		}
		if existed {
			s.progress[jobID] = prev
			if nextElem, ok := s.elements[next]; ok && next != "" {
				s.order.MoveBefore(s.elements[jobID], nextElem)
			}
		} else {
			s.evictLocked(jobID)
		}

		if evictedID == "" || evictedID == jobID {
			return
		}
		if _, ok := s.progress[evictedID]; ok || s.order.Len() >= s.capacity-1 {
			return
		}
		s.progress[evictedID] = evictedProgress
		s.elements[evictedID] = s.order.PushFront(evictedID)
	}
}

// Set は登録済みジョブの進捗を上書きします。
// 削除済みや未登録のIDは無視し、false を返します。
func (s *Store) Set(jobID string, percent int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.progress[jobID]; !ok {
		return false
	}
	s.progress[jobID] = clampProgress(percent)
	return true
}

// Get は進捗を返します。存在しない場合は (0, false) です。
func (s *Store) Get(jobID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	percent, ok := s.progress[jobID]
	if !ok {
		return 0, false
	}
	return percent, true
}

// Evict は進捗を削除します。
func (s *Store) Evict(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(jobID)
}

// Len は追跡中のジョブ数を返します。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.progress)
}

func (s *Store) evictLocked(jobID string) {
	if elem, ok := s.elements[jobID]; ok {
		s.order.Remove(elem)
		delete(s.elements, jobID)
	}
	delete(s.progress, jobID)
}
