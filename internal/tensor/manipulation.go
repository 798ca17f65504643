package tensor

// Cat concatenates tensors along the specified dimension.
//
// All tensors must have the same shape except along dim.
// Negative dims count from the end.
//
//	a := tensor.Zeros[float32](Shape{2, 3}, backend)
//	b := tensor.Zeros[float32](Shape{2, 5}, backend)
//	c := tensor.Cat([]*Tensor[float32, B]{a, b}, 1) // Shape: [2, 8]
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	backend := tensors[0].backend
	raws := make([]*RawTensor, len(tensors))
	for i, t := range tensors {
		raws[i] = t.raw
	}
	return New[T, B](backend.Cat(raws, dim), backend)
}

// Stack joins same-shaped tensors along a new dimension.
func Stack[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("stack: at least one tensor required")
	}
	expanded := make([]*Tensor[T, B], len(tensors))
	for i, t := range tensors {
		expanded[i] = t.Unsqueeze(dim)
	}
	return Cat(expanded, dim)
}

// Narrow returns the slice [start, start+length) of dim.
//
//	gates.Narrow(1, 0, hidden) // first gate block
func (t *Tensor[T, B]) Narrow(dim, start, length int) *Tensor[T, B] {
	return New[T, B](t.backend.Narrow(t.raw, dim, start, length), t.backend)
}

// Select removes dim by picking a single index along it.
func (t *Tensor[T, B]) Select(dim, index int) *Tensor[T, B] {
	dim = t.Shape().NormalizeDim(dim)
	return t.Narrow(dim, index, 1).Squeeze(dim)
}

// IndexSelect gathers the given indices along dim, in order.
func (t *Tensor[T, B]) IndexSelect(dim int, indices []int) *Tensor[T, B] {
	return New[T, B](t.backend.IndexSelect(t.raw, dim, indices), t.backend)
}

// Unsqueeze adds a dimension of size 1 at dim.
// Negative dims count from the end of the result.
func (t *Tensor[T, B]) Unsqueeze(dim int) *Tensor[T, B] {
	shape := t.Shape()
	if dim < 0 {
		dim += len(shape) + 1
	}
	if dim < 0 || dim > len(shape) {
		panic("unsqueeze: dimension out of range")
	}
	out := make(Shape, 0, len(shape)+1)
	out = append(out, shape[:dim]...)
	out = append(out, 1)
	out = append(out, shape[dim:]...)
	return t.Reshape(out...)
}

// Squeeze removes dim, which must have size 1.
func (t *Tensor[T, B]) Squeeze(dim int) *Tensor[T, B] {
	shape := t.Shape()
	dim = shape.NormalizeDim(dim)
	if shape[dim] != 1 {
		panic("squeeze: dimension size is not 1")
	}
	out := make(Shape, 0, len(shape)-1)
	out = append(out, shape[:dim]...)
	out = append(out, shape[dim+1:]...)
	return t.Reshape(out...)
}
