package builtins

import (
	"sort"

	"github.com/ptcrunner/ptcrunner/internal/lisp/evaluator"
	"github.com/ptcrunner/ptcrunner/internal/lisp/object"
	"github.com/ptcrunner/ptcrunner/internal/taxonomy"
)

func collectionBuiltins() []*evaluator.Builtin {
	return []*evaluator.Builtin{
		{Name: "map", Fn: mapBuiltin},
		{Name: "filter", Fn: filterBuiltin},
		{Name: "reduce", Fn: reduceBuiltin},
		{Name: "sort-by", Fn: sortByBuiltin},
		{Name: "group-by", Fn: groupByBuiltin},
		{Name: "distinct", Fn: distinctBuiltin},
		{Name: "pluck", Fn: pluckBuiltin},
		{Name: "sum-by", Fn: sumByBuiltin},
		{Name: "avg-by", Fn: avgByBuiltin},
		{Name: "min-by", Fn: minByBuiltin},
		{Name: "max-by", Fn: maxByBuiltin},
		{Name: "take", Fn: takeBuiltin},
		{Name: "drop", Fn: dropBuiltin},
		{Name: "take-while", Fn: takeWhileBuiltin},
		{Name: "drop-while", Fn: dropWhileBuiltin},
		{Name: "partition", Fn: partitionBuiltin},
		{Name: "concat", Fn: concatBuiltin},
		{Name: "zipmap", Fn: zipmapBuiltin},
		{Name: "count", Fn: countBuiltin},
		{Name: "first", Fn: firstBuiltin},
		{Name: "last", Fn: lastBuiltin},
		{Name: "nth", Fn: nthBuiltin},
		{Name: "conj", Fn: conjBuiltin},
		{Name: "assoc", Fn: assocBuiltin},
		{Name: "dissoc", Fn: dissocBuiltin},
		{Name: "get", Fn: getBuiltin},
		{Name: "keys", Fn: keysBuiltin},
		{Name: "vals", Fn: valsBuiltin},
		{Name: "reverse", Fn: reverseBuiltin},
		{Name: "empty?", Fn: emptyBuiltin},
		{Name: "seq?", Fn: seqBuiltin},
	}
}

// toItems materializes any PTC-Lisp collection into a slice, eagerly.
// Sets and maps (as [k v] pairs) are accepted where ordering is
// irrelevant.
func toItems(op string, v object.Value) ([]object.Value, error) {
	switch t := v.(type) {
	case *object.Vector:
		return t.Items, nil
	case *object.Set:
		return t.Items(), nil
	case *object.Map:
		out := make([]object.Value, 0, t.Len())
		t.Range(func(k, v object.Value) bool {
			out = append(out, object.NewVector(k, v))
			return true
		})
		return out, nil
	default:
		return nil, typeErr(op, op+" expects a collection, got "+string(v.Kind()))
	}
}

func orderedOnly(op string, v object.Value) error {
	if _, ok := v.(*object.Set); ok {
		return typeErr(op, op+" is order-dependent and does not accept a set")
	}
	return nil
}

func mapBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "map requires (fn, collection)").WithOp("map")
	}
	items, err := toItems("map", args[1])
	if err != nil {
		return nil, err
	}
	out := make([]object.Value, len(items))
	for i, it := range items {
		v, err := e.Apply(args[0], []object.Value{it})
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return &object.Vector{Items: out}, nil
}

func filterBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "filter requires (pred, collection)").WithOp("filter")
	}
	items, err := toItems("filter", args[1])
	if err != nil {
		return nil, err
	}
	var out []object.Value
	for _, it := range items {
		v, err := e.Apply(args[0], []object.Value{it})
		if err != nil {
			return nil, err
		}
		if object.Truthy(v) {
			out = append(out, it)
		}
	}
	return &object.Vector{Items: out}, nil
}

func reduceBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 3 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "reduce requires (fn, init, collection)").WithOp("reduce")
	}
	items, err := toItems("reduce", args[2])
	if err != nil {
		return nil, err
	}
	acc := args[1]
	for _, it := range items {
		v, err := e.Apply(args[0], []object.Value{acc, it})
		if err != nil {
			return nil, err
		}
		acc = v
	}
	return acc, nil
}

func sortByBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "sort-by requires (keyfn, collection)").WithOp("sort-by")
	}
	if err := orderedOnly("sort-by", args[1]); err != nil {
		return nil, err
	}
	items, err := toItems("sort-by", args[1])
	if err != nil {
		return nil, err
	}
	out := append([]object.Value(nil), items...)
	keys := make([]object.Value, len(out))
	for i, it := range out {
		k, err := e.Apply(args[0], []object.Value{it})
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		c, err := compareNumeric("sort-by", keys[i], keys[j])
		if err != nil {
			if s1, ok := keys[i].(object.String); ok {
				if s2, ok := keys[j].(object.String); ok {
					return s1 < s2
				}
			}
			sortErr = err
			return false
		}
		return c < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return &object.Vector{Items: out}, nil
}

func groupByBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "group-by requires (keyfn, collection)").WithOp("group-by")
	}
	items, err := toItems("group-by", args[1])
	if err != nil {
		return nil, err
	}
	groups := object.EmptyMap()
	for _, it := range items {
		k, err := e.Apply(args[0], []object.Value{it})
		if err != nil {
			return nil, err
		}
		existing, ok := groups.Get(k)
		var bucket *object.Vector
		if ok {
			bucket = existing.(*object.Vector)
		} else {
			bucket = &object.Vector{}
		}
		bucket = &object.Vector{Items: append(append([]object.Value(nil), bucket.Items...), it)}
		groups = groups.Assoc(k, bucket)
	}
	return groups, nil
}

func distinctBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "distinct requires exactly 1 argument").WithOp("distinct")
	}
	items, err := toItems("distinct", args[0])
	if err != nil {
		return nil, err
	}
	seen := object.NewSet()
	var out []object.Value
	for _, it := range items {
		if !seen.Contains(it) {
			seen.Add(it)
			out = append(out, it)
		}
	}
	return &object.Vector{Items: out}, nil
}

func pluckBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "pluck requires (field, collection)").WithOp("pluck")
	}
	items, err := toItems("pluck", args[1])
	if err != nil {
		return nil, err
	}
	out := make([]object.Value, len(items))
	for i, it := range items {
		v, ok := fieldOf(it, args[0])
		if !ok {
			v = object.Nil{}
		}
		out[i] = v
	}
	return &object.Vector{Items: out}, nil
}

func numericFieldFold(op string, args []object.Value, combine func(acc float64, v float64, n int) float64) (object.Value, int, error) {
	if len(args) != 2 {
		return nil, 0, taxonomy.New(taxonomy.InvalidArity, op+" requires (field, collection)").WithOp(op)
	}
	items, err := toItems(op, args[1])
	if err != nil {
		return nil, 0, err
	}
	allInt := true
	var accF float64
	var accI int64
	n := 0
	for _, it := range items {
		v, ok := fieldOf(it, args[0])
		if !ok {
			continue
		}
		f, isNum := asFloat(v)
		if !isNum {
			return nil, 0, typeErr(op, op+" requires a numeric field")
		}
		if _, isI := isInt(v); !isI {
			allInt = false
		}
		accF = combine(accF, f, n)
		accI += int64(f)
		n++
	}
	if allInt {
		return object.Int(accI), n, nil
	}
	return object.Float(accF), n, nil
}

func sumByBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	v, _, err := numericFieldFold("sum-by", args, func(acc, f float64, n int) float64 { return acc + f })
	return v, err
}

func avgByBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "avg-by requires (field, collection)").WithOp("avg-by")
	}
	items, err := toItems("avg-by", args[1])
	if err != nil {
		return nil, err
	}
	var sum float64
	n := 0
	for _, it := range items {
		v, ok := fieldOf(it, args[0])
		if !ok {
			continue
		}
		f, isNum := asFloat(v)
		if !isNum {
			return nil, typeErr("avg-by", "avg-by requires a numeric field")
		}
		sum += f
		n++
	}
	if n == 0 {
		return object.Nil{}, nil
	}
	return object.Float(sum / float64(n)), nil
}

func extremeByBuiltin(op string, better func(candidate, best float64) bool) func(*evaluator.Evaluator, []object.Value) (object.Value, error) {
	return func(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
		if len(args) != 2 {
			return nil, taxonomy.New(taxonomy.InvalidArity, op+" requires (field, collection)").WithOp(op)
		}
		items, err := toItems(op, args[1])
		if err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return object.Nil{}, nil
		}
		best := items[0]
		bestF, ok := fieldOf(best, args[0])
		bestVal, isNum := asFloat(bestF)
		if !ok || !isNum {
			return nil, typeErr(op, op+" requires a numeric field")
		}
		for _, it := range items[1:] {
			fv, ok := fieldOf(it, args[0])
			f, isNum := asFloat(fv)
			if !ok || !isNum {
				return nil, typeErr(op, op+" requires a numeric field")
			}
			if better(f, bestVal) {
				best, bestVal = it, f
			}
		}
		return best, nil
	}
}

var minByBuiltin = extremeByBuiltin("min-by", func(c, b float64) bool { return c < b })
var maxByBuiltin = extremeByBuiltin("max-by", func(c, b float64) bool { return c > b })

func takeBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "take requires (n, collection)").WithOp("take")
	}
	n, ok := isInt(args[0])
	if !ok {
		return nil, typeErr("take", "take requires an integer count")
	}
	items, err := toItems("take", args[1])
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if int(n) > len(items) {
		n = int64(len(items))
	}
	return &object.Vector{Items: append([]object.Value(nil), items[:n]...)}, nil
}

func dropBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "drop requires (n, collection)").WithOp("drop")
	}
	n, ok := isInt(args[0])
	if !ok {
		return nil, typeErr("drop", "drop requires an integer count")
	}
	items, err := toItems("drop", args[1])
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if int(n) > len(items) {
		n = int64(len(items))
	}
	return &object.Vector{Items: append([]object.Value(nil), items[n:]...)}, nil
}

func takeWhileBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "take-while requires (pred, collection)").WithOp("take-while")
	}
	items, err := toItems("take-while", args[1])
	if err != nil {
		return nil, err
	}
	var out []object.Value
	for _, it := range items {
		v, err := e.Apply(args[0], []object.Value{it})
		if err != nil {
			return nil, err
		}
		if !object.Truthy(v) {
			break
		}
		out = append(out, it)
	}
	return &object.Vector{Items: out}, nil
}

func dropWhileBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "drop-while requires (pred, collection)").WithOp("drop-while")
	}
	items, err := toItems("drop-while", args[1])
	if err != nil {
		return nil, err
	}
	i := 0
	for ; i < len(items); i++ {
		v, err := e.Apply(args[0], []object.Value{items[i]})
		if err != nil {
			return nil, err
		}
		if !object.Truthy(v) {
			break
		}
	}
	return &object.Vector{Items: append([]object.Value(nil), items[i:]...)}, nil
}

func partitionBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "partition requires (n, collection)").WithOp("partition")
	}
	n, ok := isInt(args[0])
	if !ok || n <= 0 {
		return nil, typeErr("partition", "partition requires a positive integer size")
	}
	items, err := toItems("partition", args[1])
	if err != nil {
		return nil, err
	}
	var out []object.Value
	for i := 0; i+int(n) <= len(items); i += int(n) {
		out = append(out, &object.Vector{Items: append([]object.Value(nil), items[i:i+int(n)]...)})
	}
	return &object.Vector{Items: out}, nil
}

func concatBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	var out []object.Value
	for _, a := range args {
		items, err := toItems("concat", a)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return &object.Vector{Items: out}, nil
}

func zipmapBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "zipmap requires (keys, vals)").WithOp("zipmap")
	}
	ks, err := toItems("zipmap", args[0])
	if err != nil {
		return nil, err
	}
	vs, err := toItems("zipmap", args[1])
	if err != nil {
		return nil, err
	}
	m := object.EmptyMap()
	for i := 0; i < len(ks) && i < len(vs); i++ {
		m = m.Assoc(ks[i], vs[i])
	}
	return m, nil
}

func countBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "count requires exactly 1 argument").WithOp("count")
	}
	switch t := args[0].(type) {
	case *object.Vector:
		return object.Int(len(t.Items)), nil
	case *object.Set:
		return object.Int(t.Len()), nil
	case *object.Map:
		return object.Int(t.Len()), nil
	case object.String:
		return object.Int(len([]rune(string(t)))), nil
	case object.Nil:
		return object.Int(0), nil
	default:
		return nil, typeErr("count", "count expects a collection or string")
	}
}

func firstBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "first requires exactly 1 argument").WithOp("first")
	}
	items, err := toItems("first", args[0])
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return object.Nil{}, nil
	}
	return items[0], nil
}

func lastBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "last requires exactly 1 argument").WithOp("last")
	}
	items, err := toItems("last", args[0])
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return object.Nil{}, nil
	}
	return items[len(items)-1], nil
}

func nthBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "nth requires (collection, index)").WithOp("nth")
	}
	items, err := toItems("nth", args[0])
	if err != nil {
		return nil, err
	}
	n, ok := isInt(args[1])
	if !ok || n < 0 || int(n) >= len(items) {
		return nil, taxonomy.New(taxonomy.ExecutionError, "nth index out of range").WithOp("nth")
	}
	return items[n], nil
}

func conjBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) < 1 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "conj requires at least 1 argument").WithOp("conj")
	}
	switch t := args[0].(type) {
	case *object.Vector:
		return &object.Vector{Items: append(append([]object.Value(nil), t.Items...), args[1:]...)}, nil
	case *object.Set:
		out := object.NewSet(t.Items()...)
		for _, a := range args[1:] {
			out.Add(a)
		}
		return out, nil
	default:
		return nil, typeErr("conj", "conj expects a vector or set")
	}
}

func assocBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) < 3 || len(args)%2 != 1 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "assoc requires (map, key, val, ...)").WithOp("assoc")
	}
	m, ok := args[0].(*object.Map)
	if !ok {
		return nil, typeErr("assoc", "assoc expects a map")
	}
	for i := 1; i+1 < len(args); i += 2 {
		m = m.Assoc(args[i], args[i+1])
	}
	return m, nil
}

func dissocBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) < 1 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "dissoc requires at least a map").WithOp("dissoc")
	}
	m, ok := args[0].(*object.Map)
	if !ok {
		return nil, typeErr("dissoc", "dissoc expects a map")
	}
	for _, k := range args[1:] {
		m = m.Dissoc(k)
	}
	return m, nil
}

func getBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "get requires (map, key) or (map, key, default)").WithOp("get")
	}
	m, ok := args[0].(*object.Map)
	if !ok {
		return nil, typeErr("get", "get expects a map")
	}
	v, found := m.Get(args[1])
	if found {
		return v, nil
	}
	if len(args) == 3 {
		return args[2], nil
	}
	return object.Nil{}, nil
}

func keysBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "keys requires exactly 1 argument").WithOp("keys")
	}
	m, ok := args[0].(*object.Map)
	if !ok {
		return nil, typeErr("keys", "keys expects a map")
	}
	return &object.Vector{Items: m.Keys()}, nil
}

func valsBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "vals requires exactly 1 argument").WithOp("vals")
	}
	m, ok := args[0].(*object.Map)
	if !ok {
		return nil, typeErr("vals", "vals expects a map")
	}
	var out []object.Value
	m.Range(func(_, v object.Value) bool {
		out = append(out, v)
		return true
	})
	return &object.Vector{Items: out}, nil
}

func reverseBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "reverse requires exactly 1 argument").WithOp("reverse")
	}
	if err := orderedOnly("reverse", args[0]); err != nil {
		return nil, err
	}
	items, err := toItems("reverse", args[0])
	if err != nil {
		return nil, err
	}
	out := make([]object.Value, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	return &object.Vector{Items: out}, nil
}

func emptyBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "empty? requires exactly 1 argument").WithOp("empty?")
	}
	items, err := toItems("empty?", args[0])
	if err != nil {
		return nil, err
	}
	return object.Bool(len(items) == 0), nil
}

func seqBuiltin(e *evaluator.Evaluator, args []object.Value) (object.Value, error) {
	if len(args) != 1 {
		return nil, taxonomy.New(taxonomy.InvalidArity, "seq? requires exactly 1 argument").WithOp("seq?")
	}
	switch args[0].(type) {
	case *object.Vector, *object.Set, *object.Map:
		return object.Bool(true), nil
	default:
		return object.Bool(false), nil
	}
}
