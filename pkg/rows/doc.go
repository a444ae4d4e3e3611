/*
Package rows defines the closed set of row shapes Marky can learn from and
generate, together with their CSV codec.

A run selects exactly one Shape. Every row value is hashable through its
canonical Key, which is what the Markov model interns instead of ever using a
raw float as a map key. FloatKey supplies the float semantics behind that key:
a total order, and a single canonical NaN that equals only itself.
*/
package rows
