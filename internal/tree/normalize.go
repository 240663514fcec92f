package tree

// wellKnownTopLevel are the top-level keys with dedicated meaning; any
// other top-level key is implicitly a recipe definition reparented under
// lib.recipes.<key> (§3).
var wellKnownTopLevel = map[string]bool{
	"cabs": true, "opts": true, "lib": true, "vars": true, "run": true, "image": true,
}

// Normalize reparents implicit top-level recipe definitions under
// lib.recipes, mutating root in place.
func Normalize(root *Node) {
	if root == nil || root.Kind != KindMap {
		return
	}
	var loose []string
	for _, k := range root.Keys {
		if !wellKnownTopLevel[k] {
			loose = append(loose, k)
		}
	}
	if len(loose) == 0 {
		return
	}
	lib := root.Get("lib")
	if lib == nil {
		lib = NewMap()
		root.Set("lib", lib)
	}
	recipes := lib.Get("recipes")
	if recipes == nil {
		recipes = NewMap()
		lib.Set("recipes", recipes)
	}
	for _, k := range loose {
		recipes.Set(k, root.Items[k])
		root.Delete(k)
	}
}
