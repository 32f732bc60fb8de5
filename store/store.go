package store

// 注意：此包只包含实现，接口定义在 core 包
// （core.Store / core.KeyValueStore）。
//
// 示例：
//   var s core.KeyValueStore = store.NewMemoryStore()
