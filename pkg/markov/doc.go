/*
Package markov provides an in-memory, order-k Markov model over the rows of a
time series, together with the training and generation drivers Marky uses to
synthesize new series from an old one.

Rows are interned into a vocabulary of integer ids with two reserved entries,
the Start-Of-Chain and End-Of-Chain sentinels. Each trained sequence is padded
with k start sentinels and closed with an end sentinel, so contexts never cross
from one fed sequence into another.

Training runs several full passes over the history, one per chunk size in a
geometric schedule (see Plan and Train). Generation stitches bounded segments
together until a requested length is reached (see GenerateStream and
GenerateFiles). A trained Model is safe for concurrent generation as long as
nothing feeds or prunes it at the same time.
*/
package markov
